//go:build ort

package encoder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX runs the text and vision encoders through ONNX Runtime.
type ONNX struct {
	cfg    ONNXConfig
	text   *ort.DynamicAdvancedSession
	vision *ort.DynamicAdvancedSession

	closeOnce sync.Once
}

// OpenONNX initialises the runtime and loads whichever models cfg names.
// A missing model leaves that half of the encoder unavailable.
func OpenONNX(cfg ONNXConfig) (*ONNX, error) {
	cfg = cfg.withDefaults()
	if cfg.LibraryPath == "" {
		return nil, fmt.Errorf("%w: libonnxruntime not found", ErrUnavailable)
	}
	ort.SetSharedLibraryPath(cfg.LibraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("onnx runtime init: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		_ = ort.DestroyEnvironment()
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer func() { _ = opts.Destroy() }()
	_ = opts.SetIntraOpNumThreads(cfg.Threads)
	_ = opts.SetInterOpNumThreads(1)

	e := &ONNX{cfg: cfg}
	if cfg.TextModel != "" {
		e.text, err = ort.NewDynamicAdvancedSession(cfg.TextModel,
			[]string{cfg.TextInput}, []string{cfg.TextOutput}, opts)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("text model %s: %w", cfg.TextModel, err)
		}
	}
	if cfg.VisionModel != "" {
		e.vision, err = ort.NewDynamicAdvancedSession(cfg.VisionModel,
			[]string{cfg.VisionInput}, []string{cfg.VisionOutput}, opts)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("vision model %s: %w", cfg.VisionModel, err)
		}
	}
	return e, nil
}

func (e *ONNX) EncodeText(ctx context.Context, ids []int) ([]float32, error) {
	if e == nil || e.text == nil {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := make([]int64, len(ids))
	for i, id := range ids {
		data[i] = int64(id)
	}
	input, err := ort.NewTensor(ort.NewShape(1, int64(len(ids))), data)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()
	return e.run(e.text, input)
}

func (e *ONNX) EncodeImage(ctx context.Context, pixels []float32) ([]float32, error) {
	if e == nil || e.vision == nil {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := int64(e.cfg.ImageSize)
	if int64(len(pixels)) != 3*size*size {
		return nil, fmt.Errorf("pixel buffer has %d values, want %d", len(pixels), 3*size*size)
	}
	input, err := ort.NewTensor(ort.NewShape(1, 3, size, size), pixels)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()
	return e.run(e.vision, input)
}

func (e *ONNX) run(session *ort.DynamicAdvancedSession, input ort.Value) ([]float32, error) {
	// nil outputs are allocated by the runtime
	outputs := make([]ort.Value, 1)
	if err := session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()
	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unsupported output tensor type %T", outputs[0])
	}
	src := t.GetData()
	if err := checkOutput(src, e.cfg.Dim); err != nil {
		return nil, err
	}
	out := make([]float32, len(src))
	copy(out, src)
	return out, nil
}

func (e *ONNX) Close() error {
	var errs []error
	e.closeOnce.Do(func() {
		if e.text != nil {
			errs = append(errs, e.text.Destroy())
		}
		if e.vision != nil {
			errs = append(errs, e.vision.Destroy())
		}
		errs = append(errs, ort.DestroyEnvironment())
	})
	return errors.Join(errs...)
}
