package main

import (
	"context"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seremi/internal/export"
	"github.com/samcharles93/seremi/internal/logger"
	"github.com/samcharles93/seremi/pkg/ser"
)

func exportCmd() *cli.Command {
	var (
		serPath string
		outDir  string
		codec   string
	)

	return &cli.Command{
		Name:  "export",
		Usage: "Write every frame of a .ser file as raw little-endian int32 plus a manifest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "ser",
				Usage:       "path to .ser file",
				Destination: &serPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output directory",
				Destination: &outDir,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "codec",
				Usage:       "frame compression (none, zstd, lz4)",
				Value:       "none",
				Destination: &codec,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyExportConfig(cmd, cfg, &codec)
			c, err := export.ParseCodec(codec)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			log := logger.FromContext(ctx)

			f, err := ser.Open(serPath, openOptions()...)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			log.Info("exporting", "path", serPath, "frames", f.NumFrames, "codec", string(c))
			_, err = export.Export(ctx, f, export.Options{
				Dir:    outDir,
				Codec:  c,
				Source: filepath.Base(serPath),
				Count:  f.NumFrames,
				Log:    log,
			})
			return err
		},
	}
}
