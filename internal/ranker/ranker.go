// Package ranker scores a query vector against every record of an embedding
// index by cosine similarity and returns the best matches.
package ranker

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync/atomic"

	"github.com/samcharles93/glint/internal/embedstore"
)

// ErrBusy is returned when a Ranker is asked to rank while a previous call is
// still running.
var ErrBusy = errors.New("ranker: search already in flight")

// ErrDimensionMismatch indicates a query whose length differs from a gallery vector.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("ranker: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Result is one ranked gallery item.
type Result struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// All asks Rank for every record of the gallery.
const All = math.MaxInt

// Rank scores query against every record of gallery and returns the
// min(topK, gallery size) best, highest score first. Equal scores keep gallery
// order. topK <= 0 yields no results. Rank allocates per call and is safe for
// concurrent use.
func Rank(query []float32, gallery *embedstore.Index, topK int) ([]Result, error) {
	return rank(query, gallery, topK, &scratch{})
}

type scratch struct {
	scores []float32
	order  []int
}

// Ranker ranks with reusable scratch buffers. Only one Rank call may run at a
// time; a concurrent call is rejected with ErrBusy rather than queued.
type Ranker struct {
	busy atomic.Bool
	buf  scratch
}

func New() *Ranker {
	return &Ranker{}
}

// Rank behaves like the package-level Rank but reuses r's buffers.
func (r *Ranker) Rank(query []float32, gallery *embedstore.Index, topK int) ([]Result, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.busy.Store(false)

	return rank(query, gallery, topK, &r.buf)
}

func rank(query []float32, gallery *embedstore.Index, topK int, buf *scratch) ([]Result, error) {
	n := gallery.Len()
	if n == 0 {
		return []Result{}, nil
	}
	if dim := gallery.Dim(); dim != len(query) {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}
	if topK <= 0 {
		return []Result{}, nil
	}

	scores := slices.Grow(buf.scores[:0], n)
	order := slices.Grow(buf.order[:0], n)
	defer func() { buf.scores, buf.order = scores[:0], order[:0] }()

	qnorm := Norm(query)
	for i, rec := range gallery.Records() {
		scores = append(scores, cosineWithNorm(query, qnorm, rec.Vector))
		order = append(order, i)
	}

	// cmp.Compare orders NaN below every number, so NaN scores sink to the end.
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	out := make([]Result, min(topK, n))
	for i := range out {
		j := order[i]
		out[i] = Result{ID: gallery.At(j).ID, Score: scores[j]}
	}
	return out, nil
}

func cosineWithNorm(q []float32, qnorm float64, v []float32) float32 {
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
	}
	return float32(dot / (qnorm*Norm(v) + Epsilon))
}
