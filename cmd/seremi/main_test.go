package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seremi/internal/export"
	"github.com/samcharles93/seremi/internal/tiatest"
	"github.com/samcharles93/seremi/pkg/tia"
)

func writeFixtures(t *testing.T) (serPath, emiPath string) {
	t.Helper()
	dir := t.TempDir()
	frames := []tia.Frame{tiatest.Ramp(4, 2, 0), tiatest.Ramp(4, 2, 9)}
	serPath = tiatest.WriteFile(t, dir, "movie_1.ser", tiatest.BuildSeries(tiatest.Series{
		Frames:     frames,
		Timestamps: []uint32{1700000000, 1700000001},
	}))
	emiPath = tiatest.WriteFile(t, dir, "movie.emi", tiatest.BuildEMI(tiatest.EMI{
		Frame:        frames[1],
		Domain:       "Real Space",
		OriginalPath: "movie_1.ser",
	}))
	return serPath, emiPath
}

// runApp executes the CLI with cfg standing in for the config file.
func runApp(t *testing.T, c Config, args ...string) (string, error) {
	t.Helper()
	prev := configLoader
	configLoader = func() Config { return c }
	t.Cleanup(func() { configLoader = prev })

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}
	err := app.Run(context.Background(), append([]string{"seremi"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestInspectSeriesJSON(t *testing.T) {
	serPath, _ := writeFixtures(t)
	out, err := runApp(t, Config{}, "inspect", "--ser", serPath, "--format", "json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var info serInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info.NumFrames != 2 || info.Width != 4 || info.Height != 2 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.OffsetWidth != "u64" || info.SeriesVersion != "0x0220" {
		t.Fatalf("unexpected header fields: %+v", info)
	}
}

func TestInspectImageText(t *testing.T) {
	_, emiPath := writeFixtures(t)
	out, err := runApp(t, Config{}, "inspect", "--emi", emiPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{
		"domain:        Real Space",
		"ObjectInfo.ExperimentalConditions.MicroscopeConditions.AcceleratingVoltage = 300000",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectImageKey(t *testing.T) {
	_, emiPath := writeFixtures(t)
	key := "ObjectInfo.ExperimentalConditions.MicroscopeConditions.AcceleratingVoltage"

	out, err := runApp(t, Config{}, "inspect", "--emi", emiPath, "--key", key)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if strings.TrimSpace(out) != "300000" {
		t.Fatalf("unexpected value %q", out)
	}

	out, err = runApp(t, Config{}, "inspect", "--emi", emiPath, "--key", key, "--format", "yaml")
	if err != nil {
		t.Fatalf("inspect yaml: %v", err)
	}
	if strings.TrimSpace(out) != `"300000"` {
		t.Fatalf("unexpected yaml value %q", out)
	}

	_, err = runApp(t, Config{}, "inspect", "--emi", emiPath, "--key", "ObjectInfo.Nope")
	if exitCode(err) != 1 {
		t.Fatalf("missing key: got %v", err)
	}
}

func TestInspectRequiresExactlyOneInput(t *testing.T) {
	serPath, emiPath := writeFixtures(t)
	if _, err := runApp(t, Config{}, "inspect"); exitCode(err) != 1 {
		t.Fatalf("no input: got %v", err)
	}
	if _, err := runApp(t, Config{}, "inspect", "--ser", serPath, "--emi", emiPath); exitCode(err) != 1 {
		t.Fatalf("both inputs: got %v", err)
	}
}

func TestFramesListsEveryFrame(t *testing.T) {
	serPath, _ := writeFixtures(t)
	out, err := runApp(t, Config{}, "frames", "--ser", serPath)
	if err != nil {
		t.Fatalf("frames: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got:\n%s", out)
	}
	if !strings.Contains(lines[1], "2023-11-14T22:13:20Z") {
		t.Fatalf("first row missing timestamp: %q", lines[1])
	}
}

func TestVerify(t *testing.T) {
	serPath, emiPath := writeFixtures(t)
	out, err := runApp(t, Config{}, "verify", "--ser", serPath, "--emi", emiPath)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out, "match") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	other := tiatest.WriteFile(t, t.TempDir(), "other.emi", tiatest.BuildEMI(tiatest.EMI{
		Frame:        tiatest.Ramp(4, 2, 1),
		Domain:       "Real Space",
		OriginalPath: "movie_1.ser",
	}))
	out, err = runApp(t, Config{}, "verify", "--ser", serPath, "--emi", other)
	if exitCode(err) != 1 {
		t.Fatalf("mismatch should exit 1, got %v", err)
	}
	if strings.Count(out, "xxhash64=") != 2 {
		t.Fatalf("both checksums should be printed:\n%s", out)
	}
}

func TestExportUsesConfigCodec(t *testing.T) {
	serPath, _ := writeFixtures(t)
	outDir := filepath.Join(t.TempDir(), "dump")
	if _, err := runApp(t, Config{ExportCodec: "zstd"}, "export", "--ser", serPath, "--out", outDir); err != nil {
		t.Fatalf("export: %v", err)
	}
	m, err := export.ReadManifest(outDir)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if m.Codec != export.CodecZstd || len(m.Frames) != 2 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if _, err := os.Stat(filepath.Join(outDir, "frame_00001.raw.zst")); err != nil {
		t.Fatalf("frame file: %v", err)
	}

	// An explicit flag beats the config file.
	outDir = filepath.Join(t.TempDir(), "dump")
	if _, err := runApp(t, Config{ExportCodec: "zstd"}, "export", "--ser", serPath, "--out", outDir, "--codec", "lz4"); err != nil {
		t.Fatalf("export: %v", err)
	}
	m, err = export.ReadManifest(outDir)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if m.Codec != export.CodecLZ4 {
		t.Fatalf("codec: got %q want lz4", m.Codec)
	}
}

func TestNoMmapFromConfig(t *testing.T) {
	serPath, _ := writeFixtures(t)
	on := true
	out, err := runApp(t, Config{NoMmap: &on}, "inspect", "--ser", serPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "mapped:         false") {
		t.Fatalf("expected unmapped read:\n%s", out)
	}
}
