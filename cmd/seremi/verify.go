package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seremi/internal/logger"
	"github.com/samcharles93/seremi/pkg/emi"
	"github.com/samcharles93/seremi/pkg/ser"
)

func verifyCmd() *cli.Command {
	var serPath, emiPath string

	return &cli.Command{
		Name:  "verify",
		Usage: "Check that the image in an .emi file equals the last frame of its .ser series",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ser", Usage: "path to .ser file", Destination: &serPath, Required: true},
			&cli.StringFlag{Name: "emi", Usage: "path to .emi file", Destination: &emiPath, Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			sf, err := ser.Open(serPath, openOptions()...)
			if err != nil {
				return err
			}
			defer func() { _ = sf.Close() }()
			ef, err := emi.Open(emiPath, openOptions()...)
			if err != nil {
				return err
			}
			defer func() { _ = ef.Close() }()

			last, err := sf.ReadLastFrame()
			if err != nil {
				return err
			}
			embedded, err := ef.ReadFrame()
			if err != nil {
				return err
			}

			w := cmd.Root().Writer
			_, _ = fmt.Fprintf(w, "ser last frame: %dx%d xxhash64=%016x\n", last.Width, last.Height, last.Checksum())
			_, _ = fmt.Fprintf(w, "emi frame:      %dx%d xxhash64=%016x\n", embedded.Width, embedded.Height, embedded.Checksum())
			if !last.Equal(embedded) {
				log.Warn("frames differ", "ser", serPath, "emi", emiPath)
				return cli.Exit("mismatch: emi frame differs from the last series frame", 1)
			}
			_, _ = fmt.Fprintln(w, "match")
			return nil
		},
	}
}
