// Package encoder defines the boundary to the neural text and image encoders
// and the image preprocessing that feeds them.
package encoder

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned by encoders that are not loaded or not compiled in.
	ErrUnavailable = errors.New("encoder: unavailable")
	// ErrOutputDim means a model produced an embedding of the wrong width.
	ErrOutputDim = errors.New("encoder: unexpected embedding width")
)

const (
	// DefaultImageSize is the square input resolution of the vision model.
	DefaultImageSize = 256
	// DefaultDim is the embedding width shared by both encoders.
	DefaultDim = 512
)

// TextEncoder embeds a fixed-length token id sequence.
type TextEncoder interface {
	EncodeText(ctx context.Context, ids []int) ([]float32, error)
}

// ImageEncoder embeds a preprocessed NCHW pixel buffer (see Preprocess).
type ImageEncoder interface {
	EncodeImage(ctx context.Context, pixels []float32) ([]float32, error)
}

// Encoder is a model pair that embeds text and images into one space.
type Encoder interface {
	TextEncoder
	ImageEncoder
	Close() error
}
