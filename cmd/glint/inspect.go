package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glint/internal/embedstore"
	"github.com/samcharles93/glint/internal/ranker"
	"github.com/samcharles93/glint/internal/tokenizer"
)

func inspectCmd() *cli.Command {
	var (
		limit         int64
		showTokenizer bool
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Summarise an index file or a tokenizer definition",
		ArgsUsage: "[index file]",
		Flags: append(indexFlags(),
			&cli.StringFlag{
				Name:        "tokenizer-json",
				Usage:       "path to tokenizer.json",
				Destination: &tokenizerJSONPath,
			},
			&cli.BoolFlag{
				Name:        "tokenizer",
				Usage:       "inspect the tokenizer instead of the index",
				Destination: &showTokenizer,
			},
			&cli.Int64Flag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "number of records to list (-1 for all)",
				Value:       10,
				Destination: &limit,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyConfig(cmd, fileConfig)
			if showTokenizer {
				path, err := resolveTokenizerPath(tokenizerJSONPath, textModel)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				vocab, err := tokenizer.LoadVocabulary(path)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				printVocabulary(os.Stdout, path, vocab)
				return nil
			}

			path := cmd.Args().First()
			if path == "" {
				path = resolveIndexPath(indexPath, imagesDir)
			}
			idx, err := embedstore.ReadFile(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("read %s: %v", path, err), 1)
			}
			printIndex(os.Stdout, path, idx, int(limit))
			return nil
		},
	}
}

func printIndex(w io.Writer, path string, idx *embedstore.Index, limit int) {
	_, _ = fmt.Fprintf(w, "file:    %s\n", path)
	_, _ = fmt.Fprintf(w, "records: %d\n", idx.Len())
	_, _ = fmt.Fprintf(w, "dim:     %d\n", idx.Dim())
	if idx.Len() == 0 {
		return
	}

	lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, r := range idx.Records() {
		n := ranker.Norm(r.Vector)
		lo, hi, sum = min(lo, n), max(hi, n), sum+n
	}
	_, _ = fmt.Fprintf(w, "norm:    min %.4f  mean %.4f  max %.4f\n", lo, sum/float64(idx.Len()), hi)

	if limit < 0 || limit > idx.Len() {
		limit = idx.Len()
	}
	for i := range limit {
		_, _ = fmt.Fprintf(w, "%6d  %s\n", i, idx.At(i).ID)
	}
	if limit < idx.Len() {
		_, _ = fmt.Fprintf(w, "   ...  %d more\n", idx.Len()-limit)
	}
}

func printVocabulary(w io.Writer, path string, v *tokenizer.Vocabulary) {
	_, _ = fmt.Fprintf(w, "file:   %s\n", path)
	_, _ = fmt.Fprintf(w, "vocab:  %d\n", v.Size())
	_, _ = fmt.Fprintf(w, "merges: %d\n", v.Merges())
	_, _ = fmt.Fprintf(w, "bos:    %d %s\n", v.BOSID(), tokenizer.BOSToken)
	_, _ = fmt.Fprintf(w, "eos:    %d %s\n", v.EOSID(), tokenizer.EOSToken)
}
