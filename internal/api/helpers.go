package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, ErrorResponse{Error: ErrorBody{Message: msg, Type: errType}})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeErr(c *echo.Context, err error) error {
	status, typ := statusFor(err)
	return writeError(c, status, typ, err.Error())
}

// writeJSON encodes v with go-json so ordered metadata maps keep their order.
func writeJSON(c *echo.Context, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	return c.Blob(status, echo.MIMEApplicationJSON, b)
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, newInvalidRequest("invalid JSON body: " + err.Error())
	}
	return out, nil
}

func indexParam(c *echo.Context) (int, error) {
	raw := c.Param("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, newInvalidRequest("index must be an integer, got " + strconv.Quote(raw))
	}
	return i, nil
}

// resolvePath joins rel onto root and rejects anything that escapes root,
// either lexically or through a symlink.
func resolvePath(root, rel string) (string, error) {
	if rel == "" {
		return "", newInvalidRequest("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", newInvalidRequest("path must be relative to the data directory")
	}
	full := filepath.Join(root, rel)
	if !within(root, full) {
		return "", newInvalidRequest("path escapes the data directory")
	}

	// Symlinks inside root must not lead outside it. Paths that do not
	// exist yet are left for Open to report.
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return full, nil
	}
	realFull, err := filepath.EvalSymlinks(full)
	if err != nil {
		return full, nil
	}
	if !within(realRoot, realFull) {
		return "", newInvalidRequest("path escapes the data directory")
	}
	return realFull, nil
}

func within(root, path string) bool {
	r, err := filepath.Rel(root, path)
	return err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

func kindOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ser":
		return "ser", nil
	case ".emi":
		return "emi", nil
	default:
		return "", newInvalidRequest("unsupported file extension " + strconv.Quote(filepath.Ext(path)) + " (want .ser or .emi)")
	}
}
