package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/salvor/internal/assemble"
	"github.com/samcharles93/salvor/internal/logger"
	"github.com/samcharles93/salvor/internal/salvage"
)

var (
	outPath       string
	outputFormat  string
	recenter      bool
	normalize     bool
	targetExtent  float64
	maxCandidates int64
	minViable     int64
	logLevel      string
	logFormat     string
	debug         bool
)

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "output path (defaults to the input's stem in $SALVOR_OUT_DIR or the working directory)",
			Destination: &outPath,
		},
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "output format (smf, stl, obj, json)",
			Value:       "smf",
			Destination: &outputFormat,
		},
	}
}

func transformFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "recenter",
			Usage:       "translate the group's bounding-box centre to the origin",
			Destination: &recenter,
		},
		&cli.BoolFlag{
			Name:        "normalize",
			Usage:       "scale the group so its largest extent matches --target-extent",
			Destination: &normalize,
		},
		&cli.Float64Flag{
			Name:        "target-extent",
			Usage:       "largest axis extent after --normalize",
			Value:       assemble.DefaultTargetExtent,
			Destination: &targetExtent,
		},
	}
}

func engineFlags() []cli.Flag {
	def := salvage.DefaultTunables()
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "max-candidates",
			Usage:       "cap on recovered meshes per run",
			Value:       int64(def.MaxCandidates),
			Destination: &maxCandidates,
		},
		&cli.Int64Flag{
			Name:        "min-viable",
			Usage:       "recovered vertex count that lets later strategies be skipped",
			Value:       int64(def.MinViableVertices),
			Destination: &minViable,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// newLogger builds the process logger from the logging flags.
func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(os.Stderr, level)
	}
}

// engineTunables starts from the defaults and applies the engine flags.
func engineTunables() salvage.Tunables {
	tun := salvage.DefaultTunables()
	if maxCandidates > 0 {
		tun.MaxCandidates = int(maxCandidates)
	}
	if minViable > 0 {
		tun.MinViableVertices = int(minViable)
	}
	return tun
}

// groupTransform builds the viewer transform from the transform flags.
func groupTransform() assemble.Transform {
	return assemble.Transform{
		Recenter:     recenter,
		Normalize:    normalize,
		TargetExtent: float32(targetExtent),
	}
}
