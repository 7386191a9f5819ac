package main

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glint/internal/api"
	"github.com/samcharles93/glint/internal/encoder"
	"github.com/samcharles93/glint/internal/logger"
	"github.com/samcharles93/glint/internal/search"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		maxImage    int64
		noWarmup    bool
		noUI        bool
	)

	flags := slices.Concat(indexFlags(), tokenizerFlags(), encoderFlags(), []cli.Flag{
		topKFlag(),
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.Int64Flag{
			Name:        "max-image-bytes",
			Usage:       "largest accepted image upload",
			Value:       api.DefaultMaxImageBytes,
			Destination: &maxImage,
		},
		&cli.BoolFlag{
			Name:        "no-warmup",
			Usage:       "skip the warm-up encode at startup",
			Destination: &noWarmup,
		},
		&cli.BoolFlag{
			Name:        "no-ui",
			Usage:       "do not serve the web search page",
			Destination: &noUI,
		},
	})

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the search HTTP API",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, fileConfig, &addr)
			log := logger.FromContext(ctx)

			cfg := search.Config{
				ContextLength: int(contextLength),
				ImageSize:     int(imageSize),
				Logger:        log,
			}
			tok, err := loadTokenizer()
			if err != nil {
				log.Warn("text search disabled", "error", err)
			} else {
				cfg.Tokenizer = tok
			}
			if textModel == "" && visionModel == "" {
				log.Warn("search by text and image disabled", "error", encoder.ErrUnavailable)
			} else if enc, err := openEncoders(textModel != "", visionModel != ""); err != nil {
				log.Warn("encoders unavailable", "error", err)
			} else {
				defer func() { _ = enc.Close() }()
				if textModel != "" {
					cfg.Text = enc
				}
				if visionModel != "" {
					cfg.Image = enc
				}
			}

			svc := search.NewService(cfg)
			path := resolveIndexPath(indexPath, imagesDir)
			if err := svc.LoadIndex(path); err != nil {
				log.Warn("serving without index", "path", path, "error", err)
			}
			if !noWarmup {
				svc.Warmup(ctx)
			}

			server := api.NewServer(api.ServerConfig{
				Service:       svc,
				Tokenizer:     cfg.Tokenizer,
				IndexPath:     path,
				ImagesDir:     imagesDir,
				UI:            !noUI,
				TopK:          int(topK),
				MaxImageBytes: maxImage,
				Logger:        log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "index", path)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			if err := sc.Start(ctx, e); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
