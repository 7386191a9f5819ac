package encoder

import (
	"fmt"
	"os"
)

// ONNXConfig locates the exported text and vision models.
type ONNXConfig struct {
	// LibraryPath is the onnxruntime shared library. Empty means auto-detect.
	LibraryPath string
	TextModel   string
	VisionModel string

	ContextLength int
	ImageSize     int
	// Dim is the embedding width both models must produce.
	Dim int

	TextInput    string
	TextOutput   string
	VisionInput  string
	VisionOutput string

	Threads int
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.LibraryPath == "" {
		c.LibraryPath = findRuntimeLibrary()
	}
	if c.ContextLength <= 0 {
		c.ContextLength = 77
	}
	if c.ImageSize <= 0 {
		c.ImageSize = DefaultImageSize
	}
	if c.Dim <= 0 {
		c.Dim = DefaultDim
	}
	if c.TextInput == "" {
		c.TextInput = "input_ids"
	}
	if c.TextOutput == "" {
		c.TextOutput = "text_embeds"
	}
	if c.VisionInput == "" {
		c.VisionInput = "pixel_values"
	}
	if c.VisionOutput == "" {
		c.VisionOutput = "image_embeds"
	}
	if c.Threads <= 0 {
		c.Threads = 4
	}
	return c
}

// checkOutput rejects model outputs that are not one dim-wide embedding.
func checkOutput(vec []float32, dim int) error {
	if len(vec) != dim {
		return fmt.Errorf("%w: model returned %d values, want %d", ErrOutputDim, len(vec), dim)
	}
	return nil
}

// findRuntimeLibrary looks for libonnxruntime in common locations.
func findRuntimeLibrary() string {
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}
	candidates := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.dylib",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
