//go:build !ort

package encoder

import (
	"context"
	"fmt"
)

// ONNX is a placeholder when the binary is built without the ort tag.
type ONNX struct{}

// OpenONNX always fails with ErrUnavailable; rebuild with -tags ort to enable it.
func OpenONNX(cfg ONNXConfig) (*ONNX, error) {
	return nil, fmt.Errorf("%w: built without onnx runtime support (-tags ort)", ErrUnavailable)
}

func (e *ONNX) EncodeText(context.Context, []int) ([]float32, error) {
	return nil, ErrUnavailable
}

func (e *ONNX) EncodeImage(context.Context, []float32) ([]float32, error) {
	return nil, ErrUnavailable
}

func (e *ONNX) Close() error { return nil }
