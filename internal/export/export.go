// Package export dumps decoded frames to disk as raw little-endian int32
// files, optionally compressed, together with a JSON manifest.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/seremi/internal/logger"
	"github.com/samcharles93/seremi/pkg/tia"
)

const ManifestName = "manifest.json"

// Series is the part of a decoded series that Export needs. *ser.File
// satisfies it.
type Series interface {
	ReadFrame(i int) (tia.Frame, error)
	ReadTimestamp(i int) (int64, error)
}

type Options struct {
	Dir    string
	Codec  Codec
	Source string
	// Count is the number of frames to write, starting at frame 0.
	Count int
	Log   logger.Logger
}

type Manifest struct {
	Source    string          `json:"source"`
	Codec     Codec           `json:"codec"`
	DataType  string          `json:"dtype"`
	CreatedAt time.Time       `json:"created_at"`
	Frames    []ManifestFrame `json:"frames"`
}

type ManifestFrame struct {
	Index     int     `json:"index"`
	File      string  `json:"file"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Timestamp int64   `json:"timestamp"`
	Checksum  string  `json:"xxhash64"`
	Min       int32   `json:"min"`
	Max       int32   `json:"max"`
	Mean      float64 `json:"mean"`
}

// Export writes frames [0, opts.Count) of s into opts.Dir and returns the
// manifest it wrote. It checks ctx between frames.
func Export(ctx context.Context, s Series, opts Options) (*Manifest, error) {
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	m := &Manifest{
		Source:    opts.Source,
		Codec:     opts.Codec,
		DataType:  tia.Int32.String(),
		CreatedAt: time.Now().UTC(),
		Frames:    make([]ManifestFrame, 0, opts.Count),
	}
	for i := 0; i < opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := s.ReadFrame(i)
		if err != nil {
			return nil, fmt.Errorf("export frame %d: %w", i, err)
		}
		ts, err := s.ReadTimestamp(i)
		if err != nil {
			return nil, fmt.Errorf("export frame %d: %w", i, err)
		}

		name := fmt.Sprintf("frame_%05d%s", i, opts.Codec.Ext())
		if err := writeFrame(filepath.Join(opts.Dir, name), opts.Codec, frame); err != nil {
			return nil, fmt.Errorf("export frame %d: %w", i, err)
		}
		lo, hi, mean := frame.Stats()
		m.Frames = append(m.Frames, ManifestFrame{
			Index:     i,
			File:      name,
			Width:     frame.Width,
			Height:    frame.Height,
			Timestamp: ts,
			Checksum:  strconv.FormatUint(frame.Checksum(), 16),
			Min:       lo,
			Max:       hi,
			Mean:      mean,
		})
		log.Debug("frame exported", "index", i, "file", name)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(opts.Dir, ManifestName), data, 0o644); err != nil {
		return nil, fmt.Errorf("export manifest: %w", err)
	}
	log.Info("export complete", "dir", opts.Dir, "frames", len(m.Frames), "codec", string(opts.Codec))
	return m, nil
}

func writeFrame(path string, codec Codec, frame tia.Frame) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	w, err := codec.NewWriter(out)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame.Bytes()); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// ReadManifest loads dir/manifest.json.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return &m, nil
}

// LoadFrame reads back one exported frame described by mf.
func LoadFrame(dir string, codec Codec, mf ManifestFrame) (tia.Frame, error) {
	f, err := os.Open(filepath.Join(dir, mf.File))
	if err != nil {
		return tia.Frame{}, err
	}
	defer func() { _ = f.Close() }()

	r, err := codec.NewReader(f)
	if err != nil {
		return tia.Frame{}, err
	}
	defer func() { _ = r.Close() }()

	size, ok := tia.FrameSize(uint64(mf.Width), uint64(mf.Height))
	if !ok {
		return tia.Frame{}, fmt.Errorf("frame %d: dimensions too large", mf.Index)
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return tia.Frame{}, fmt.Errorf("frame %d: %w", mf.Index, err)
	}
	return tia.DecodeFrame(raw, mf.Width, mf.Height), nil
}
