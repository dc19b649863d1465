package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/salvor/internal/api"
	"github.com/samcharles93/salvor/internal/logger"
	"github.com/samcharles93/salvor/internal/store"
	"github.com/samcharles93/salvor/internal/webui"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		dataDir     string
		ttl         time.Duration
		sweepEvery  time.Duration
		maxUpload   int64
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the recoveries REST API",
		Flags: append(append(append(transformFlags(), engineFlags()...), loggingFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "directory for stored recoveries",
				Destination: &dataDir,
			},
			&cli.DurationFlag{
				Name:        "ttl",
				Usage:       "age after which stored recoveries are swept (0 keeps them)",
				Value:       24 * time.Hour,
				Destination: &ttl,
			},
			&cli.DurationFlag{
				Name:        "sweep-every",
				Usage:       "janitor sweep interval",
				Value:       10 * time.Minute,
				Destination: &sweepEvery,
			},
			&cli.Int64Flag{
				Name:        "max-upload",
				Usage:       "largest accepted upload in bytes",
				Value:       api.DefaultMaxUploadBytes,
				Destination: &maxUpload,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyServeConfig(cmd, cfg, &addr, &dataDir, &ttl, &maxUpload)
			// Service logs default to JSON unless a flag or the config
			// picked a format.
			if !cmd.IsSet("log-format") && cfg.LogFormat == "" {
				logFormat = "json"
			}
			log := newLogger()
			ctx = logger.WithContext(ctx, log)

			if dataDir == "" {
				dataDir = defaultDataDir()
			}
			st, err := store.New(dataDir, ttl, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open store: %v", err), 1)
			}
			st.StartJanitor(ctx, sweepEvery)

			server := api.NewServer(api.Config{
				Store:          st,
				Tunables:       engineTunables(),
				Transform:      groupTransform(),
				MaxUploadBytes: maxUpload,
				Logger:         log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			static := http.FileServer(webui.StaticFS())
			e.GET("/", func(c *echo.Context) error {
				static.ServeHTTP(c.Response(), c.Request())
				return nil
			})

			log.Info("starting server", "address", addr, "data_dir", dataDir, "ttl", ttl.String())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// defaultDataDir is where recoveries land when --data-dir is not set.
func defaultDataDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "salvor-data")
	}
	return filepath.Join(dir, "salvor", "recoveries")
}
