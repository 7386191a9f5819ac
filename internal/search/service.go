// Package search wires the tokenizer, the encoders and the ranker into the
// text, image and vector query pipeline over a swappable embedding index.
package search

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samcharles93/glint/internal/embedstore"
	"github.com/samcharles93/glint/internal/encoder"
	"github.com/samcharles93/glint/internal/logger"
	"github.com/samcharles93/glint/internal/ranker"
	"github.com/samcharles93/glint/internal/tokenizer"
)

var (
	// ErrBusy is returned when a search arrives while another is in flight.
	ErrBusy = errors.New("search: another search is in flight")
	// ErrNotFound is returned when a similar-item query names an unknown record.
	ErrNotFound = errors.New("search: record not found")
)

// Config configures a Service. Text, Image and Tokenizer may be nil; the
// corresponding searches then report the encoder as unavailable.
type Config struct {
	Tokenizer     *tokenizer.Tokenizer
	Text          encoder.TextEncoder
	Image         encoder.ImageEncoder
	ContextLength int
	ImageSize     int
	Logger        logger.Logger
}

// Outcome is the result of one search. Dropped searches carry no results and
// a Reason.
type Outcome struct {
	Results   []ranker.Result
	Elapsed   time.Duration
	IndexSize int
	Dropped   bool
	Reason    string
}

// Service answers searches against the current index. The index is replaced
// atomically; a search keeps the instance it started with. At most one search
// runs at a time and concurrent requests are dropped, not queued.
type Service struct {
	tok           *tokenizer.Tokenizer
	text          encoder.TextEncoder
	image         encoder.ImageEncoder
	contextLength int
	imageSize     int
	log           logger.Logger

	index    atomic.Pointer[embedstore.Index]
	inflight sync.Mutex
	ranker   *ranker.Ranker
}

func NewService(cfg Config) *Service {
	if cfg.ContextLength <= 0 {
		cfg.ContextLength = tokenizer.DefaultContextLength
	}
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = encoder.DefaultImageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Service{
		tok:           cfg.Tokenizer,
		text:          cfg.Text,
		image:         cfg.Image,
		contextLength: cfg.ContextLength,
		imageSize:     cfg.ImageSize,
		log:           cfg.Logger.With("component", "search"),
		ranker:        ranker.New(),
	}
}

// Index returns the current index, or nil when none is loaded.
func (s *Service) Index() *embedstore.Index {
	return s.index.Load()
}

// SwapIndex installs idx and returns the previous index.
func (s *Service) SwapIndex(idx *embedstore.Index) *embedstore.Index {
	return s.index.Swap(idx)
}

// LoadIndex reads an index file and installs it. On failure the current
// index stays in place.
func (s *Service) LoadIndex(path string) error {
	idx, err := embedstore.ReadFile(path)
	if err != nil {
		s.log.Error("index load failed", "path", path, "error", err)
		return err
	}
	s.SwapIndex(idx)
	s.log.Info("index loaded", "path", path, "records", idx.Len(), "dim", idx.Dim())
	return nil
}

// SearchText tokenizes query, embeds it and ranks the index.
func (s *Service) SearchText(ctx context.Context, query string, topK int) (Outcome, error) {
	return s.run(ctx, topK, func(ctx context.Context) ([]float32, error) {
		if s.tok == nil || s.text == nil {
			return nil, encoder.ErrUnavailable
		}
		dropped := s.tok.Dropped()
		ids := s.tok.Encode(query, s.contextLength)
		if n := s.tok.Dropped() - dropped; n > 0 {
			s.log.Debug("symbols missing from vocabulary", "count", n)
		}
		return s.text.EncodeText(ctx, ids)
	})
}

// SearchImage embeds img and ranks the index.
func (s *Service) SearchImage(ctx context.Context, img image.Image, topK int) (Outcome, error) {
	return s.run(ctx, topK, func(ctx context.Context) ([]float32, error) {
		if s.image == nil {
			return nil, encoder.ErrUnavailable
		}
		return s.image.EncodeImage(ctx, encoder.Preprocess(img, s.imageSize))
	})
}

// SearchVector ranks the index against a ready embedding.
func (s *Service) SearchVector(ctx context.Context, vec []float32, topK int) (Outcome, error) {
	return s.run(ctx, topK, func(context.Context) ([]float32, error) {
		return vec, nil
	})
}

// SearchSimilar uses the stored vector of record id as the query.
func (s *Service) SearchSimilar(ctx context.Context, id string, topK int) (Outcome, error) {
	rec, ok := s.Index().Find(id)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s.SearchVector(ctx, rec.Vector, topK)
}

// Warmup runs one throwaway text encode so the first real query does not pay
// for lazy model initialisation.
func (s *Service) Warmup(ctx context.Context) {
	if s.tok == nil || s.text == nil {
		return
	}
	start := time.Now()
	if _, err := s.text.EncodeText(ctx, s.tok.Encode("warmup", s.contextLength)); err != nil {
		s.log.Debug("warmup failed", "error", err)
		return
	}
	s.log.Debug("warmup done", "elapsed", time.Since(start))
}

func (s *Service) run(ctx context.Context, topK int, embed func(context.Context) ([]float32, error)) (Outcome, error) {
	idx := s.Index()
	if idx.Len() == 0 {
		return Outcome{Results: []ranker.Result{}}, nil
	}
	if !s.inflight.TryLock() {
		return dropped(idx, "busy"), ErrBusy
	}
	defer s.inflight.Unlock()

	start := time.Now()
	query, err := embed(ctx)
	if err != nil {
		if errors.Is(err, encoder.ErrUnavailable) {
			s.log.Warn("search skipped", "reason", "encoder unavailable")
			return dropped(idx, "encoder unavailable"), err
		}
		return Outcome{}, fmt.Errorf("embed query: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	results, err := s.ranker.Rank(query, idx, topK)
	if errors.Is(err, ranker.ErrBusy) {
		return dropped(idx, "busy"), ErrBusy
	}
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Results:   results,
		Elapsed:   time.Since(start),
		IndexSize: idx.Len(),
	}
	s.log.Debug("search done", "results", len(results), "records", idx.Len(), "elapsed", out.Elapsed)
	return out, nil
}

func dropped(idx *embedstore.Index, reason string) Outcome {
	return Outcome{Results: []ranker.Result{}, IndexSize: idx.Len(), Dropped: true, Reason: reason}
}

// Skipped reports whether err is one of the errors that drop a search without
// failing it: an unavailable encoder or a search already in flight.
func Skipped(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, encoder.ErrUnavailable)
}
