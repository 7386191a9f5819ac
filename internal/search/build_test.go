package search

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/samcharles93/glint/internal/encoder"
)

func writeRaw(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, c)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func galleryDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "c.png"), color.RGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(dir, "a.PNG"), color.RGBA{B: 255, A: 255})
	writePNG(t, filepath.Join(dir, "nested", "d.png"), color.RGBA{G: 255, A: 255})
	if err := writeRaw(filepath.Join(dir, "b.jpg"), []byte("not a jpeg")); err != nil {
		t.Fatal(err)
	}
	if err := writeRaw(filepath.Join(dir, "notes.txt"), []byte("ignored")); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestListImages(t *testing.T) {
	t.Parallel()
	dir := galleryDir(t)

	got, err := ListImages(dir, false)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if want := []string{"a.PNG", "b.jpg", "c.png"}; !slices.Equal(got, want) {
		t.Fatalf("flat = %v, want %v", got, want)
	}

	got, err = ListImages(dir, true)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if want := []string{"a.PNG", "b.jpg", "c.png", "nested/d.png"}; !slices.Equal(got, want) {
		t.Fatalf("recursive = %v, want %v", got, want)
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()
	dir := galleryDir(t)

	var mu sync.Mutex
	var progress []int
	idx, err := Build(context.Background(), dir, &fakeEncoder{}, Options{
		Workers:   3,
		ImageSize: 4,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if total != 3 {
				t.Errorf("total = %d, want 3", total)
			}
			progress = append(progress, done)
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var got []string
	for _, r := range idx.Records() {
		got = append(got, r.ID)
	}
	if want := []string{"a.PNG", "c.png"}; !slices.Equal(got, want) {
		t.Fatalf("records = %v, want %v", got, want)
	}
	if red := idx.At(1).Vector[0]; red < 0.99 {
		t.Fatalf("c.png red = %v, want ~1", red)
	}
	slices.Sort(progress)
	if !slices.Equal(progress, []int{1, 2, 3}) {
		t.Fatalf("progress = %v", progress)
	}
}

func TestBuildRecursiveRateLimited(t *testing.T) {
	t.Parallel()
	idx, err := Build(context.Background(), galleryDir(t), &fakeEncoder{}, Options{
		Recursive: true,
		Rate:      1000,
		ImageSize: 4,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := idx.Find("nested/d.png"); !ok || idx.Len() != 3 {
		t.Fatalf("records = %d, nested present = %v", idx.Len(), ok)
	}
}

func TestBuildSearchRoundTrip(t *testing.T) {
	t.Parallel()
	idx, err := Build(context.Background(), galleryDir(t), &fakeEncoder{}, Options{ImageSize: 4})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := NewService(Config{})
	s.SwapIndex(idx)
	out, err := s.SearchSimilar(context.Background(), "c.png", 1)
	if err != nil || !slices.Equal(ids(out.Results), []string{"c.png"}) {
		t.Fatalf("SearchSimilar = %v, %v", ids(out.Results), err)
	}
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if _, err := Build(ctx, t.TempDir(), &fakeEncoder{}, Options{}); !errors.Is(err, ErrNoImages) {
		t.Fatalf("empty dir err = %v", err)
	}
	if _, err := Build(ctx, filepath.Join(t.TempDir(), "missing"), &fakeEncoder{}, Options{}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing dir err = %v", err)
	}
	if _, err := Build(ctx, galleryDir(t), nil, Options{}); !errors.Is(err, encoder.ErrUnavailable) {
		t.Fatalf("nil encoder err = %v", err)
	}

	boom := errors.New("boom")
	if _, err := Build(ctx, galleryDir(t), &fakeEncoder{err: boom}, Options{ImageSize: 4}); !errors.Is(err, boom) {
		t.Fatalf("encoder failure err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Build(cancelled, galleryDir(t), &fakeEncoder{}, Options{ImageSize: 4}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled err = %v", err)
	}
}
