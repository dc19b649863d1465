package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/salvor/internal/importer"
	"github.com/samcharles93/salvor/internal/sniff"
)

// sniffWindow covers every container magic plus the SketchUp marker scan.
const sniffWindow = 512

func sniffCmd() *cli.Command {
	return &cli.Command{
		Name:      "sniff",
		Usage:     "Identify a file's container variant without scanning it",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			input := cmd.Args().First()
			if input == "" {
				return cli.Exit("error: input file required", 2)
			}

			f, err := os.Open(input)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			head := make([]byte, sniffWindow)
			n, err := io.ReadFull(f, head)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
				return cli.Exit(fmt.Sprintf("error: read %s: %v", input, err), 1)
			}
			head = head[:n]

			h := sniff.Sniff(head)
			fmt.Printf("File:    %s\n", input)
			fmt.Printf("Variant: %s\n", h.Variant)
			if h.Version != "" {
				fmt.Printf("Version: %s\n", h.Version)
			}
			byteOrder := "little-endian"
			if !h.Mode.LittleEndian {
				byteOrder = "big-endian"
			}
			fmt.Printf("Layout:  %s, %d-byte words\n", byteOrder, h.Mode.WordSize)
			fmt.Printf("Route:   %s\n", routeFor(importer.Detect(input, head)))
			return nil
		},
	}
}

// routeFor says which pipeline convert would send the file down.
func routeFor(format importer.Format) string {
	switch format {
	case importer.FormatHeuristic:
		return "heuristic recovery (closed container)"
	case importer.FormatUnknown:
		return "no conformant importer (salvor recover scans anything)"
	default:
		return fmt.Sprintf("conformant %s import", format)
	}
}
