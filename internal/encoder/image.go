package encoder

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes a JPEG, PNG or WebP image.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// LoadImage decodes the image file at path.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodeImage(f)
}

// Preprocess scales img to size x size and returns its RGB channels as a
// [1, 3, size, size] float buffer with values in [0, 1].
func Preprocess(img image.Image, size int) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			o := dst.PixOffset(x, y)
			p := y*size + x
			out[p] = float32(dst.Pix[o]) / 255
			out[plane+p] = float32(dst.Pix[o+1]) / 255
			out[2*plane+p] = float32(dst.Pix[o+2]) / 255
		}
	}
	return out
}
