package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glint/internal/encoder"
	"github.com/samcharles93/glint/internal/logger"
	"github.com/samcharles93/glint/internal/ranker"
	"github.com/samcharles93/glint/internal/search"
)

func searchCmd() *cli.Command {
	var (
		imagePath string
		similarID string
		asJSON    bool
		all       bool
	)

	flags := slices.Concat(indexFlags(), tokenizerFlags(), encoderFlags(), []cli.Flag{
		topKFlag(),
		&cli.StringFlag{
			Name:        "image",
			Usage:       "search with an image file instead of text",
			Destination: &imagePath,
		},
		&cli.StringFlag{
			Name:        "similar",
			Usage:       "search with the stored vector of an indexed image",
			Destination: &similarID,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print results as JSON",
			Destination: &asJSON,
		},
		&cli.BoolFlag{
			Name:        "all",
			Usage:       "rank every indexed image, ignoring --top-k",
			Destination: &all,
		},
	})

	return &cli.Command{
		Name:      "search",
		Usage:     "Search the gallery by text, image or similarity",
		ArgsUsage: "[query text]",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyConfig(cmd, fileConfig)
			log := logger.FromContext(ctx)

			query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			modes := 0
			for _, set := range []bool{query != "", imagePath != "", similarID != ""} {
				if set {
					modes++
				}
			}
			if modes != 1 {
				return cli.Exit("search: give exactly one of a text query, --image or --similar", 1)
			}

			cfg := search.Config{
				ContextLength: int(contextLength),
				ImageSize:     int(imageSize),
				Logger:        log,
			}
			switch {
			case query != "":
				tok, err := loadTokenizer()
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				enc, err := openEncoders(true, false)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				defer func() { _ = enc.Close() }()
				cfg.Tokenizer, cfg.Text = tok, enc
			case imagePath != "":
				enc, err := openEncoders(false, true)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				defer func() { _ = enc.Close() }()
				cfg.Image = enc
			}

			svc := search.NewService(cfg)
			path := resolveIndexPath(indexPath, imagesDir)
			if err := svc.LoadIndex(path); err != nil {
				return cli.Exit(fmt.Sprintf("load index %s: %v", path, err), 1)
			}

			var (
				out search.Outcome
				err error
				k   = resultLimit(int(topK), all)
			)
			switch {
			case query != "":
				out, err = svc.SearchText(ctx, query, k)
			case imagePath != "":
				img, lerr := encoder.LoadImage(imagePath)
				if lerr != nil {
					return cli.Exit(lerr.Error(), 1)
				}
				out, err = svc.SearchImage(ctx, img, k)
			default:
				out, err = svc.SearchSimilar(ctx, similarID, k)
			}
			if err != nil && !search.Skipped(err) {
				return cli.Exit(err.Error(), 1)
			}
			if out.Dropped {
				log.Warn("search dropped", "reason", out.Reason)
			}
			log.Debug("search finished", "elapsed", out.Elapsed, "records", out.IndexSize)
			return printResults(os.Stdout, out, asJSON)
		},
	}
}

type jsonResult struct {
	Rank  int     `json:"rank"`
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// printResults writes one line per result with the score to two decimals.
// resultLimit turns --top-k and --all into a ranker limit. A zero or negative
// --top-k asks for nothing.
func resultLimit(k int, all bool) int {
	if all {
		return ranker.All
	}
	return max(k, 0)
}

func printResults(w io.Writer, out search.Outcome, asJSON bool) error {
	if asJSON {
		rows := make([]jsonResult, len(out.Results))
		for i, r := range out.Results {
			rows[i] = jsonResult{Rank: i + 1, ID: r.ID, Score: r.Score}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(out.Results) == 0 {
		if out.Dropped {
			_, err := fmt.Fprintf(w, "no results (%s)\n", out.Reason)
			return err
		}
		_, err := fmt.Fprintln(w, "no results")
		return err
	}
	var errs []error
	for i, r := range out.Results {
		_, err := fmt.Fprintf(w, "%3d. %.2f  %s\n", i+1, r.Score, r.ID)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
