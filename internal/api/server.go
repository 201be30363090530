package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/seremi/internal/logger"
	"github.com/samcharles93/seremi/pkg/emi"
	"github.com/samcharles93/seremi/pkg/ser"
	"github.com/samcharles93/seremi/pkg/tia"
)

type Config struct {
	// Root is the directory container paths are resolved against.
	Root string
	Log  logger.Logger
	// OpenOptions are passed to every ser.Open and emi.Open.
	OpenOptions []tia.Option
}

type Server struct {
	store *ContainerStore
	root  string
	log   logger.Logger
	opts  []tia.Option
	clock func() time.Time
}

func NewServer(store *ContainerStore, cfg Config) *Server {
	if store == nil {
		store = NewContainerStore()
	}
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		store: store,
		root:  cfg.Root,
		log:   log.With("component", "api"),
		opts:  cfg.OpenOptions,
		clock: time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/containers", s.handleOpen)
	e.GET("/v1/containers", s.handleList)
	e.GET("/v1/containers/:id", s.handleGet)
	e.DELETE("/v1/containers/:id", s.handleClose)
	e.GET("/v1/containers/:id/frames/:index", s.handleFrame)
	e.GET("/v1/containers/:id/timestamps/:index", s.handleTimestamp)
	e.GET("/v1/containers/:id/metadata", s.handleMetadata)
}

// Close releases every open container.
func (s *Server) Close() error {
	return s.store.CloseAll()
}

func (s *Server) handleOpen(c *echo.Context) error {
	req, err := decodeJSON[OpenRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	path, err := resolvePath(s.root, req.Path)
	if err != nil {
		return writeErr(c, err)
	}
	kind, err := kindOf(req.Path)
	if err != nil {
		return writeErr(c, err)
	}

	ct := &Container{Kind: kind, Path: req.Path, OpenedAt: s.clock()}
	switch kind {
	case "ser":
		ct.ser, err = ser.Open(path, s.opts...)
	case "emi":
		ct.emi, err = emi.Open(path, s.opts...)
	}
	if err != nil {
		s.log.Warn("open failed", "path", req.Path, "error", err)
		return writeErr(c, err)
	}
	s.store.add(ct)
	s.log.Info("container opened", "id", ct.ID, "kind", kind, "path", req.Path)
	return c.JSON(http.StatusOK, summarize(ct))
}

func (s *Server) handleList(c *echo.Context) error {
	all := s.store.List()
	out := ContainerList{Object: "list", Data: make([]ContainerSummary, 0, len(all))}
	for _, ct := range all {
		out.Data = append(out.Data, summarize(ct))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGet(c *echo.Context) error {
	ct, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "container not found")
	}
	return c.JSON(http.StatusOK, summarize(ct))
}

func (s *Server) handleClose(c *echo.Context) error {
	id := c.Param("id")
	ok, err := s.store.Remove(id)
	if !ok {
		return writeNotFound(c, "container not found")
	}
	if err != nil {
		s.log.Error("close failed", "id", id, "error", err)
		return writeErr(c, err)
	}
	s.log.Info("container closed", "id", id)
	return c.JSON(http.StatusOK, CloseResponse{ID: id, Object: "container.closed", Closed: true})
}

func (s *Server) handleFrame(c *echo.Context) error {
	ct, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "container not found")
	}
	index, err := indexParam(c)
	if err != nil {
		return writeErr(c, err)
	}

	ct.mu.RLock()
	var frame tia.Frame
	switch {
	case ct.closed:
		err = tia.ErrClosed
	case ct.ser != nil:
		frame, err = ct.ser.ReadFrame(index)
	case index != 0:
		err = tia.IndexError("emi read frame", index, 1)
	default:
		frame, err = ct.emi.ReadFrame()
	}
	ct.mu.RUnlock()
	if err != nil {
		return writeErr(c, err)
	}

	h := c.Response().Header()
	h.Set("X-Frame-Width", strconv.Itoa(frame.Width))
	h.Set("X-Frame-Height", strconv.Itoa(frame.Height))
	h.Set("X-Frame-Checksum", strconv.FormatUint(frame.Checksum(), 16))
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, frame.Bytes())
}

func (s *Server) handleTimestamp(c *echo.Context) error {
	ct, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "container not found")
	}
	if ct.ser == nil {
		return writeBadRequest(c, "timestamps are only available for series containers")
	}
	index, err := indexParam(c)
	if err != nil {
		return writeErr(c, err)
	}

	ct.mu.RLock()
	var ts int64
	if ct.closed {
		err = tia.ErrClosed
	} else {
		ts, err = ct.ser.ReadTimestamp(index)
	}
	ct.mu.RUnlock()
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, TimestampResponse{
		Index:     index,
		Timestamp: ts,
		Time:      time.Unix(ts, 0).UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetadata(c *echo.Context) error {
	ct, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "container not found")
	}
	if ct.emi == nil {
		return writeBadRequest(c, "metadata is only available for emi containers")
	}
	key := c.QueryParam("key")
	if key == "" {
		return writeJSON(c, http.StatusOK, ct.emi.Metadata)
	}
	v, ok := ct.emi.Lookup(key)
	if !ok {
		return writeNotFound(c, "metadata key "+strconv.Quote(key)+" not found")
	}
	return writeJSON(c, http.StatusOK, v)
}

func summarize(ct *Container) ContainerSummary {
	out := ContainerSummary{
		ID:       ct.ID,
		Object:   "container",
		Kind:     ct.Kind,
		Path:     ct.Path,
		OpenedAt: ct.OpenedAt.Unix(),
	}
	switch {
	case ct.ser != nil:
		f := ct.ser
		out.Width, out.Height = f.Width, f.Height
		out.NumFrames = f.NumFrames
		out.Mapped = f.Mapped()
		out.SeriesVersion = f.Header.SeriesVersion
		out.TagType = f.Header.TagTypeID.String()
		out.OffsetWidth = f.OffsetWidth.String()
	case ct.emi != nil:
		f := ct.emi
		out.Width, out.Height = f.Width, f.Height
		out.NumFrames = 1
		out.Mapped = f.Mapped()
		out.Domain = f.Domain
		out.OriginalPath = f.OriginalPath
	}
	return out
}
