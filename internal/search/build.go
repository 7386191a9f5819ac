package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/samcharles93/glint/internal/embedstore"
	"github.com/samcharles93/glint/internal/encoder"
	"github.com/samcharles93/glint/internal/logger"
)

// ErrNoImages is returned when a build finds no image files.
var ErrNoImages = errors.New("search: no images found")

var imageExts = []string{".jpg", ".jpeg", ".png", ".webp"}

// Options tune Build.
type Options struct {
	// Workers bounds concurrent encoder calls. Zero uses GOMAXPROCS.
	Workers int
	// Rate caps encoder calls per second. Zero means unlimited.
	Rate float64
	// Recursive descends into subdirectories; identifiers are then
	// slash-separated paths relative to the root.
	Recursive bool
	ImageSize int
	// Progress, if set, is called after each file with the number of files
	// finished so far. Calls may come from several goroutines.
	Progress func(done, total int)
	Logger   logger.Logger
}

// ListImages returns the image files under dir in sorted order, as paths
// relative to dir.
func ListImages(dir string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !slices.Contains(imageExts, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// Build embeds every image under dir and returns the index in sorted file
// order. Files that cannot be decoded and images the encoder returns no
// vector for are skipped. An encoder error aborts the build.
func Build(ctx context.Context, dir string, enc encoder.ImageEncoder, opts Options) (*embedstore.Index, error) {
	if enc == nil {
		return nil, encoder.ErrUnavailable
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	size := opts.ImageSize
	if size <= 0 {
		size = encoder.DefaultImageSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	if info, err := os.Stat(dir); err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, fmt.Errorf("search: %s is not a directory", dir)
	}
	files, err := ListImages(dir, opts.Recursive)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	log.Info("building index", "dir", dir, "images", len(files), "workers", workers)

	vectors := make([][]float32, len(files))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range files {
		g.Go(func() error {
			defer func() {
				if opts.Progress != nil {
					opts.Progress(int(done.Add(1)), len(files))
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := encoder.LoadImage(filepath.Join(dir, filepath.FromSlash(name)))
			if err != nil {
				log.Warn("skipping image", "file", name, "error", err)
				return nil
			}
			pixels := encoder.Preprocess(img, size)
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			vec, err := enc.EncodeImage(gctx, pixels)
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := embedstore.New(len(files))
	for i, vec := range vectors {
		if len(vec) == 0 {
			continue
		}
		if err := idx.Add(files[i], vec); err != nil {
			return nil, err
		}
	}
	log.Info("index built", "records", idx.Len(), "skipped", len(files)-idx.Len(), "dim", idx.Dim())
	return idx, nil
}
