package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/seremi/pkg/emi"
	"github.com/samcharles93/seremi/pkg/ser"
	"github.com/samcharles93/seremi/pkg/tia/metadata"
)

type serInfo struct {
	Path          string `json:"path" yaml:"path"`
	SeriesVersion string `json:"series_version" yaml:"series_version"`
	OffsetWidth   string `json:"offset_width" yaml:"offset_width"`
	TagType       string `json:"tag_type" yaml:"tag_type"`
	TotalElements uint32 `json:"total_elements" yaml:"total_elements"`
	NumFrames     int    `json:"num_frames" yaml:"num_frames"`
	Width         int    `json:"width" yaml:"width"`
	Height        int    `json:"height" yaml:"height"`
	Mapped        bool   `json:"mapped" yaml:"mapped"`
}

type emiInfo struct {
	Path         string        `json:"path" yaml:"path"`
	Width        int           `json:"width" yaml:"width"`
	Height       int           `json:"height" yaml:"height"`
	DataType     string        `json:"dtype" yaml:"dtype"`
	MarkerOffset int           `json:"marker_offset" yaml:"marker_offset"`
	Domain       string        `json:"domain" yaml:"domain"`
	OriginalPath string        `json:"original_path" yaml:"original_path"`
	Mapped       bool          `json:"mapped" yaml:"mapped"`
	Metadata     *metadata.Map `json:"metadata" yaml:"metadata"`
}

func inspectCmd() *cli.Command {
	var (
		serPath string
		emiPath string
		format  string
		key     string
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Print the header of a .ser file or the header and metadata of an .emi file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ser", Usage: "path to .ser file", Destination: &serPath},
			&cli.StringFlag{Name: "emi", Usage: "path to .emi file", Destination: &emiPath},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output format (text, json, yaml)",
				Value:       "text",
				Destination: &format,
			},
			&cli.StringFlag{
				Name:        "key",
				Usage:       "print only the metadata value at this dotted path (emi only)",
				Destination: &key,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if (serPath == "") == (emiPath == "") {
				return cli.Exit("exactly one of --ser or --emi is required", 1)
			}
			switch format {
			case "text", "json", "yaml":
			default:
				return cli.Exit(fmt.Sprintf("unknown format %q", format), 1)
			}
			w := cmd.Root().Writer
			if serPath != "" {
				if key != "" {
					return cli.Exit("--key applies to --emi only", 1)
				}
				return inspectSeries(w, serPath, format)
			}
			return inspectImage(w, emiPath, format, key)
		},
	}
}

func inspectSeries(w io.Writer, path, format string) error {
	f, err := ser.Open(path, openOptions()...)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info := serInfo{
		Path:          path,
		SeriesVersion: fmt.Sprintf("0x%04X", f.Header.SeriesVersion),
		OffsetWidth:   f.OffsetWidth.String(),
		TagType:       f.Header.TagTypeID.String(),
		TotalElements: f.Header.TotalElements,
		NumFrames:     f.NumFrames,
		Width:         f.Width,
		Height:        f.Height,
		Mapped:        f.Mapped(),
	}
	if format != "text" {
		return encode(w, format, info)
	}
	_, _ = fmt.Fprintf(w, "path:           %s\n", info.Path)
	_, _ = fmt.Fprintf(w, "series version: %s\n", info.SeriesVersion)
	_, _ = fmt.Fprintf(w, "offset width:   %s\n", info.OffsetWidth)
	_, _ = fmt.Fprintf(w, "tag type:       %s\n", info.TagType)
	_, _ = fmt.Fprintf(w, "total elements: %d\n", info.TotalElements)
	_, _ = fmt.Fprintf(w, "frames:         %d\n", info.NumFrames)
	_, _ = fmt.Fprintf(w, "shape:          %dx%d (w x h)\n", info.Width, info.Height)
	_, _ = fmt.Fprintf(w, "mapped:         %t\n", info.Mapped)
	return nil
}

func inspectImage(w io.Writer, path, format, key string) error {
	f, err := emi.Open(path, openOptions()...)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if key != "" {
		v, ok := f.Lookup(key)
		if !ok {
			return cli.Exit(fmt.Sprintf("metadata key %q not found", key), 1)
		}
		if format == "text" {
			_, _ = fmt.Fprintln(w, v.String())
			return nil
		}
		return encode(w, format, v)
	}

	info := emiInfo{
		Path:         path,
		Width:        f.Width,
		Height:       f.Height,
		DataType:     f.DataType.String(),
		MarkerOffset: f.MarkerOffset,
		Domain:       f.Domain,
		OriginalPath: f.OriginalPath,
		Mapped:       f.Mapped(),
		Metadata:     f.Metadata,
	}
	if format != "text" {
		return encode(w, format, info)
	}
	_, _ = fmt.Fprintf(w, "path:          %s\n", info.Path)
	_, _ = fmt.Fprintf(w, "shape:         %dx%d (w x h)\n", info.Width, info.Height)
	_, _ = fmt.Fprintf(w, "dtype:         %s\n", info.DataType)
	_, _ = fmt.Fprintf(w, "marker offset: %d\n", info.MarkerOffset)
	_, _ = fmt.Fprintf(w, "domain:        %s\n", info.Domain)
	_, _ = fmt.Fprintf(w, "original path: %s\n", info.OriginalPath)
	_, _ = fmt.Fprintf(w, "mapped:        %t\n", info.Mapped)
	_, _ = fmt.Fprintln(w, "metadata:")
	walkMetadata("", metadata.MapValue(f.Metadata), func(path string, v metadata.Value) {
		_, _ = fmt.Fprintf(w, "  %s = %s\n", path, leafText(v))
	})
	return nil
}

// walkMetadata calls fn for every leaf below v with its dotted path.
func walkMetadata(prefix string, v metadata.Value, fn func(string, metadata.Value)) {
	join := func(seg string) string {
		if prefix == "" {
			return seg
		}
		return prefix + "." + seg
	}
	switch v.Kind() {
	case metadata.KindMap:
		m, _ := v.Map()
		for k, child := range m.All() {
			walkMetadata(join(k), child, fn)
		}
	case metadata.KindList:
		items, _ := v.List()
		for i, child := range items {
			walkMetadata(join(strconv.Itoa(i)), child, fn)
		}
	default:
		fn(prefix, v)
	}
}

func leafText(v metadata.Value) string {
	if v.IsNull() {
		return "<null>"
	}
	s, _ := v.Str()
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return strconv.Quote(s)
	}
	return s
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
}
