package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glint/internal/logger"
)

func tokenizeCmd() *cli.Command {
	var decode bool

	return &cli.Command{
		Name:      "tokenize",
		Usage:     "Print the token ids the text encoder would receive",
		ArgsUsage: "<text>",
		Flags: append(tokenizerFlags(),
			&cli.StringFlag{
				Name:        "text-model",
				Usage:       "text encoder path, used to find a sibling tokenizer.json",
				Destination: &textModel,
			},
			&cli.BoolFlag{
				Name:        "decode",
				Usage:       "also print the ids decoded back to text",
				Destination: &decode,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyConfig(cmd, fileConfig)
			text := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return cli.Exit("tokenize: text is required", 1)
			}
			tok, err := loadTokenizer()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			ids := tok.Encode(text, int(contextLength))
			fmt.Printf("tokens: %s\n", strings.Join(tok.Tokens(text), " "))
			fmt.Printf("ids:    %v\n", ids)
			if decode {
				fmt.Printf("decode: %s\n", tok.Decode(ids))
			}
			if n := tok.Dropped(); n > 0 {
				logger.FromContext(ctx).Warn("symbols missing from vocabulary", "count", n)
			}
			return nil
		},
	}
}
