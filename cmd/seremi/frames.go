package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seremi/internal/logger"
	"github.com/samcharles93/seremi/pkg/ser"
)

func framesCmd() *cli.Command {
	var serPath string

	return &cli.Command{
		Name:  "frames",
		Usage: "List the frames of a .ser file with timestamps and pixel statistics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "ser",
				Usage:       "path to .ser file",
				Destination: &serPath,
				Required:    true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			f, err := ser.Open(serPath, openOptions()...)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			log.Debug("series opened", "path", serPath, "frames", f.NumFrames, "mapped", f.Mapped())

			w := cmd.Root().Writer
			_, _ = fmt.Fprintf(w, "%-6s %-20s %12s %12s %14s %-16s\n", "index", "time", "min", "max", "mean", "xxhash64")
			for i := 0; i < f.NumFrames; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				frame, err := f.ReadFrame(i)
				if err != nil {
					return err
				}
				ts, err := f.ReadTimestamp(i)
				if err != nil {
					return err
				}
				lo, hi, mean := frame.Stats()
				_, _ = fmt.Fprintf(w, "%-6d %-20s %12d %12d %14.3f %-16s\n",
					i,
					time.Unix(ts, 0).UTC().Format(time.RFC3339),
					lo, hi, mean,
					strconv.FormatUint(frame.Checksum(), 16),
				)
			}
			if f.NumFrames == 0 {
				_, _ = fmt.Fprintln(w, "(series has no tag table; no frames are addressable)")
			}
			return nil
		},
	}
}
