package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/salvor/internal/assemble"
	"github.com/samcharles93/salvor/internal/importer"
	"github.com/samcharles93/salvor/internal/salvage"
	"github.com/samcharles93/salvor/internal/sniff"
	"github.com/samcharles93/salvor/internal/version"
)

func convertCmd() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert a mesh file to another format",
		ArgsUsage: "<file>",
		Flags: append(append(append(outputFlags(), transformFlags()...),
			engineFlags()...), loggingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			input := cmd.Args().First()
			if input == "" {
				return cli.Exit("error: input file required", 2)
			}

			cfg := LoadConfig()
			applyRecoverConfig(cmd, cfg)
			log := newLogger()

			data, release, src, err := readSource(input)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read %s: %v", input, err), 1)
			}
			defer func() { _ = release() }()

			var res *salvage.Result
			cands, format, err := importer.Import(input)
			switch {
			case err == nil:
				res = &salvage.Result{Candidates: cands}
				res.Header.Variant = sniff.Variant(format)
				log.Info("imported", "file", input, "format", string(format), "meshes", len(cands))
			case errors.Is(err, importer.ErrHeuristicFormat):
				// Closed container: fall back to heuristic recovery.
				log.Info("closed container, using heuristic recovery", "file", input)
				res, err = salvage.Recover(data, salvage.Options{
					Tunables: engineTunables(),
					Logger:   log,
				})
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			default:
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			archive := assemble.BuildArchive(res, groupTransform(), assemble.Provenance{
				Tool:         "salvor " + version.String(),
				SourceFile:   src.name,
				SourceSHA256: src.sha256,
				SourceBytes:  src.bytes,
			})
			out, err := writeArchive(archive, outputFormat, input, cfg.OutDir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			fmt.Printf("Wrote %s (%d meshes, %d vertices)\n", out, len(archive.Meshes), res.TotalVertices())
			return nil
		},
	}
}
