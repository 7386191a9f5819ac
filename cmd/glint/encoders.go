package main

import (
	"fmt"

	"github.com/samcharles93/glint/internal/encoder"
	"github.com/samcharles93/glint/internal/tokenizer"
)

func loadTokenizer() (*tokenizer.Tokenizer, error) {
	path, err := resolveTokenizerPath(tokenizerJSONPath, textModel)
	if err != nil {
		return nil, err
	}
	tok, err := tokenizer.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return tok, nil
}

// openEncoders loads the ONNX models named by the flags. Pass false to skip
// a model the command does not need.
func openEncoders(text, vision bool) (*encoder.ONNX, error) {
	cfg := encoder.ONNXConfig{
		LibraryPath:   ortLibrary,
		ContextLength: int(contextLength),
		ImageSize:     int(imageSize),
		Dim:           int(embeddingDim),
	}
	if text {
		if textModel == "" {
			return nil, fmt.Errorf("%w: --text-model is required", encoder.ErrUnavailable)
		}
		cfg.TextModel = textModel
	}
	if vision {
		if visionModel == "" {
			return nil, fmt.Errorf("%w: --vision-model is required", encoder.ErrUnavailable)
		}
		cfg.VisionModel = visionModel
	}
	return encoder.OpenONNX(cfg)
}
