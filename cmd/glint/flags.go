package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glint/internal/encoder"
	"github.com/samcharles93/glint/internal/tokenizer"
)

var (
	configFile        string
	indexPath         string
	imagesDir         string
	tokenizerJSONPath string
	textModel         string
	visionModel       string
	ortLibrary        string
	contextLength     int64
	imageSize         int64
	embeddingDim      int64
	topK              int64
	logLevel          string
	logFormat         string
	debug             bool
)

func indexFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "index",
			Aliases:     []string{"i"},
			Usage:       "path to the embedding index file",
			Sources:     cli.EnvVars(envGlintIndex),
			Destination: &indexPath,
		},
		&cli.StringFlag{
			Name:        "images",
			Aliases:     []string{"dir"},
			Usage:       "image gallery directory",
			Sources:     cli.EnvVars(envGlintImagesDir),
			Destination: &imagesDir,
		},
	}
}

func tokenizerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tokenizer-json",
			Aliases:     []string{"tokenizer"},
			Usage:       "path to tokenizer.json",
			Destination: &tokenizerJSONPath,
		},
		&cli.Int64Flag{
			Name:        "context-length",
			Aliases:     []string{"ctx"},
			Usage:       "token sequence length fed to the text encoder",
			Value:       tokenizer.DefaultContextLength,
			Destination: &contextLength,
		},
	}
}

func encoderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "text-model",
			Usage:       "path to the ONNX text encoder",
			Destination: &textModel,
		},
		&cli.StringFlag{
			Name:        "vision-model",
			Usage:       "path to the ONNX image encoder",
			Destination: &visionModel,
		},
		&cli.StringFlag{
			Name:        "ort-library",
			Usage:       "path to the onnxruntime shared library",
			Destination: &ortLibrary,
		},
		&cli.Int64Flag{
			Name:        "image-size",
			Usage:       "square input resolution of the image encoder",
			Value:       encoder.DefaultImageSize,
			Destination: &imageSize,
		},
		&cli.Int64Flag{
			Name:        "embedding-dim",
			Usage:       "embedding width the encoders must produce",
			Value:       encoder.DefaultDim,
			Destination: &embeddingDim,
		},
	}
}

func topKFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:        "top-k",
		Aliases:     []string{"k"},
		Usage:       "number of results to return",
		Value:       5,
		Destination: &topK,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml",
			Value:       configPath(),
			Destination: &configFile,
		},
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
