package api

import (
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/seremi/internal/tiatest"
	"github.com/samcharles93/seremi/pkg/tia"
)

type fixture struct {
	e      *echo.Echo
	server *Server
	dir    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	tiatest.WriteFile(t, dir, "movie_1.ser", tiatest.BuildSeries(tiatest.Series{
		Frames:     []tia.Frame{tiatest.Ramp(3, 2, 0), tiatest.Ramp(3, 2, 50)},
		Timestamps: []uint32{1700000000, 1700000002},
	}))
	tiatest.WriteFile(t, dir, "movie.emi", tiatest.BuildEMI(tiatest.EMI{
		Frame:        tiatest.Ramp(3, 2, 50),
		Domain:       "Real Space",
		OriginalPath: "movie_1.ser",
	}))
	tiatest.WriteFile(t, dir, "broken.ser", []byte("not a series file at all"))
	tiatest.WriteFile(t, dir, "notes.txt", []byte("hello"))

	server := NewServer(nil, Config{Root: dir})
	t.Cleanup(func() { _ = server.Close() })
	e := echo.New()
	server.Register(e)
	return fixture{e: e, server: server, dir: dir}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f fixture) open(t *testing.T, rel string) ContainerSummary {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/containers", `{"path":"`+rel+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("open %s: got %d body=%s", rel, rec.Code, rec.Body.String())
	}
	var out ContainerSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	return out
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return out.Error.Type
}

func TestOpenGetCloseLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sum := f.open(t, "movie_1.ser")
	if sum.ID == "" || sum.Kind != "ser" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.Width != 3 || sum.Height != 2 || sum.NumFrames != 2 {
		t.Fatalf("unexpected geometry: %+v", sum)
	}
	if sum.OffsetWidth != "u64" {
		t.Fatalf("offset width: got %q", sum.OffsetWidth)
	}

	rec := f.do(t, http.MethodGet, "/v1/containers/"+sum.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/containers", "")
	var list ContainerList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != sum.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec = f.do(t, http.MethodDelete, "/v1/containers/"+sum.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/v1/containers/"+sum.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, "/v1/containers/"+sum.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: got %d", rec.Code)
	}
	if f.server.store.Len() != 0 {
		t.Fatalf("store should be empty")
	}
}

func TestFrameEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sum := f.open(t, "movie_1.ser")

	rec := f.do(t, http.MethodGet, "/v1/containers/"+sum.ID+"/frames/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("frame status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != echo.MIMEOctetStream {
		t.Fatalf("content type: got %q", got)
	}
	if rec.Header().Get("X-Frame-Width") != "3" || rec.Header().Get("X-Frame-Height") != "2" {
		t.Fatalf("dimension headers: %v", rec.Header())
	}
	body := rec.Body.Bytes()
	if len(body) != 3*2*4 {
		t.Fatalf("body length: got %d", len(body))
	}
	if got := int32(binary.LittleEndian.Uint32(body[4:])); got != 51 {
		t.Fatalf("pixel 1: got %d want 51", got)
	}

	rec = f.do(t, http.MethodGet, "/v1/containers/"+sum.ID+"/frames/2", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("out of range: got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/v1/containers/"+sum.ID+"/frames/x", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad index: got %d", rec.Code)
	}
}

func TestTimestampEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sum := f.open(t, "movie_1.ser")
	rec := f.do(t, http.MethodGet, "/v1/containers/"+sum.ID+"/timestamps/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("timestamp status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var ts TimestampResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ts); err != nil {
		t.Fatalf("decode timestamp: %v", err)
	}
	if ts.Timestamp != 1700000002 || ts.Time != "2023-11-14T22:13:22Z" {
		t.Fatalf("unexpected timestamp: %+v", ts)
	}

	emiSum := f.open(t, "movie.emi")
	rec = f.do(t, http.MethodGet, "/v1/containers/"+emiSum.ID+"/timestamps/0", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("emi timestamps: got %d", rec.Code)
	}
}

func TestEMIFrameAndMetadata(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sum := f.open(t, "movie.emi")
	if sum.Kind != "emi" || sum.Domain != "Real Space" || sum.NumFrames != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	rec := f.do(t, http.MethodGet, "/v1/containers/"+sum.ID+"/frames/0", "")
	if rec.Code != http.StatusOK || rec.Body.Len() != 3*2*4 {
		t.Fatalf("emi frame: got %d len=%d", rec.Code, rec.Body.Len())
	}
	rec = f.do(t, http.MethodGet, "/v1/containers/"+sum.ID+"/frames/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("emi frame 1: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/containers/"+sum.ID+"/metadata", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), `{"ObjectInfo":`) {
		t.Fatalf("metadata: got %d body=%s", rec.Code, rec.Body.String())
	}

	key := "ObjectInfo.ExperimentalConditions.MicroscopeConditions.AcceleratingVoltage"
	rec = f.do(t, http.MethodGet, "/v1/containers/"+sum.ID+"/metadata?key="+key, "")
	if rec.Code != http.StatusOK || rec.Body.String() != `"300000"` {
		t.Fatalf("metadata key: got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/v1/containers/"+sum.ID+"/metadata?key=ObjectInfo.Nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing key: got %d", rec.Code)
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, tc := range []struct {
		body   string
		status int
		typ    string
	}{
		{`{"path":""}`, http.StatusBadRequest, "invalid_request_error"},
		{`{"path":"../etc/passwd.ser"}`, http.StatusBadRequest, "invalid_request_error"},
		{`{"path":"/abs/movie.ser"}`, http.StatusBadRequest, "invalid_request_error"},
		{`{"path":"notes.txt"}`, http.StatusBadRequest, "invalid_request_error"},
		{`{"path":"missing.ser"}`, http.StatusNotFound, "not_found_error"},
		{`{"path":"broken.ser"}`, http.StatusUnprocessableEntity, "decode_error"},
		{`{"path":"movie_1.ser","extra":1}`, http.StatusBadRequest, "invalid_request_error"},
		{`not json`, http.StatusBadRequest, "invalid_request_error"},
	} {
		rec := f.do(t, http.MethodPost, "/v1/containers", tc.body)
		if rec.Code != tc.status {
			t.Errorf("%s: status got %d want %d (body=%s)", tc.body, rec.Code, tc.status, rec.Body.String())
			continue
		}
		if got := errorType(t, rec); got != tc.typ {
			t.Errorf("%s: type got %q want %q", tc.body, got, tc.typ)
		}
	}
	if f.server.store.Len() != 0 {
		t.Fatalf("failed opens must not leave handles behind")
	}
}

func TestUnknownContainer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, path := range []string{
		"/v1/containers/nope",
		"/v1/containers/nope/frames/0",
		"/v1/containers/nope/timestamps/0",
		"/v1/containers/nope/metadata",
	} {
		rec := f.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: got %d", path, rec.Code)
		}
	}
}

func TestServerCloseReleasesAll(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.open(t, "movie_1.ser")
	f.open(t, "movie.emi")
	ct, _ := f.server.store.Get(a.ID)

	if err := f.server.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if f.server.store.Len() != 0 {
		t.Fatalf("store not emptied")
	}
	if _, err := ct.ser.ReadFrame(0); err == nil {
		t.Fatalf("expected read on closed container to fail")
	}
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		rel string
		ok  bool
	}{
		{"a.ser", true},
		{"sub/dir/a.ser", true},
		{"sub/../a.ser", true},
		{"..", false},
		{"../a.ser", false},
		{"sub/../../a.ser", false},
		{"..a.ser", true},
	} {
		_, err := resolvePath("/data", tc.rel)
		if (err == nil) != tc.ok {
			t.Errorf("%q: err=%v want ok=%v", tc.rel, err, tc.ok)
		}
	}
}

func TestResolvePathFollowsSymlinks(t *testing.T) {
	t.Parallel()

	outside := t.TempDir()
	secret := tiatest.WriteFile(t, outside, "secret.ser", []byte("x"))
	root := t.TempDir()
	inside := tiatest.WriteFile(t, root, "real.ser", []byte("x"))

	if err := os.Symlink(secret, filepath.Join(root, "escape.ser")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "outdir")); err != nil {
		t.Fatalf("symlink dir: %v", err)
	}
	if err := os.Symlink(inside, filepath.Join(root, "alias.ser")); err != nil {
		t.Fatalf("symlink inside: %v", err)
	}

	for _, rel := range []string{"escape.ser", "outdir/secret.ser"} {
		if _, err := resolvePath(root, rel); err == nil {
			t.Errorf("%q: expected symlink escape to be rejected", rel)
		}
	}

	got, err := resolvePath(root, "alias.ser")
	if err != nil {
		t.Fatalf("alias inside root: %v", err)
	}
	want, _ := filepath.EvalSymlinks(inside)
	if got != want {
		t.Fatalf("alias resolved to %q, want %q", got, want)
	}

	// Through the API the escape is a bad request and opens nothing.
	server := NewServer(nil, Config{Root: root})
	t.Cleanup(func() { _ = server.Close() })
	e := echo.New()
	server.Register(e)
	f := fixture{e: e, server: server, dir: root}
	rec := f.do(t, http.MethodPost, "/v1/containers", `{"path":"escape.ser"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("escape via API: got %d body=%s", rec.Code, rec.Body.String())
	}
	if server.store.Len() != 0 {
		t.Fatalf("rejected open must not leave a handle")
	}
}
