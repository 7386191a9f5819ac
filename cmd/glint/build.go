package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glint/internal/embedstore"
	"github.com/samcharles93/glint/internal/logger"
	"github.com/samcharles93/glint/internal/search"
)

func buildCmd() *cli.Command {
	var (
		workers   int64
		rate      float64
		recursive bool
		quiet     bool
	)

	flags := slices.Concat(indexFlags(), encoderFlags(), []cli.Flag{
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"j"},
			Usage:       "concurrent image encodes (0 = GOMAXPROCS)",
			Destination: &workers,
		},
		&cli.Float64Flag{
			Name:        "rate",
			Usage:       "max image encodes per second (0 = unlimited)",
			Destination: &rate,
		},
		&cli.BoolFlag{
			Name:        "recursive",
			Aliases:     []string{"r"},
			Usage:       "include images in subdirectories",
			Destination: &recursive,
		},
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "suppress the progress line",
			Destination: &quiet,
		},
	})

	return &cli.Command{
		Name:  "build",
		Usage: "Embed every image in the gallery and write the index file",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyBuildConfig(cmd, fileConfig, &workers, &rate)
			log := logger.FromContext(ctx)

			dir, err := resolveImagesDir(imagesDir)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			out, err := resolveBuildOut(indexPath, dir)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			enc, err := openEncoders(false, true)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer func() { _ = enc.Close() }()

			opts := search.Options{
				Workers:   int(workers),
				Rate:      rate,
				Recursive: recursive,
				ImageSize: int(imageSize),
				Logger:    log,
			}
			if !quiet {
				opts.Progress = progressPrinter(os.Stderr)
			}

			start := time.Now()
			idx, err := search.Build(ctx, dir, enc, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("build: %v", err), 1)
			}
			if err := embedstore.WriteFile(out, idx); err != nil {
				return cli.Exit(fmt.Sprintf("write %s: %v", out, err), 1)
			}
			log.Info("saved embeddings", "path", out, "records", idx.Len(), "elapsed", time.Since(start))
			return nil
		},
	}
}

// progressPrinter returns a Progress callback that redraws one status line.
func progressPrinter(w io.Writer) func(done, total int) {
	var mu sync.Mutex
	last := 0
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if done <= last {
			return
		}
		last = done
		_, _ = fmt.Fprintf(w, "\rembedding %d/%d", done, total)
		if done == total {
			_, _ = fmt.Fprintln(w)
		}
	}
}
