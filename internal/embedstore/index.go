package embedstore

import (
	"math"
	"slices"
)

// Record is one gallery item: an identifier and its embedding.
type Record struct {
	ID     string
	Vector []float32
}

// Index is an ordered list of records sharing one dimension. Order is insertion
// order and survives serialisation. An Index handed to searchers must not be
// mutated; build a new one and swap it in instead.
type Index struct {
	records []Record
	dim     int
}

// New returns an empty index with room for n records.
func New(n int) *Index {
	return &Index{records: make([]Record, 0, n)}
}

// Add appends a record. The first record fixes the dimension.
func (x *Index) Add(id string, vec []float32) error {
	if len(x.records) > 0 && len(vec) != x.dim {
		return &ErrDimensionMismatch{ID: id, Expected: x.dim, Actual: len(vec)}
	}
	if len(x.records) == 0 {
		x.dim = len(vec)
	}
	x.records = append(x.records, Record{ID: id, Vector: vec})
	return nil
}

// Len returns the number of records. A nil index is empty.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.records)
}

// Dim returns the vector dimension, or 0 for an empty index.
func (x *Index) Dim() int {
	if x == nil {
		return 0
	}
	return x.dim
}

// Records exposes the records in order. Callers must treat them as read-only.
func (x *Index) Records() []Record {
	if x == nil {
		return nil
	}
	return x.records
}

// At returns the i-th record.
func (x *Index) At(i int) Record {
	return x.records[i]
}

// Find returns the first record with the given identifier.
func (x *Index) Find(id string) (Record, bool) {
	if x == nil {
		return Record{}, false
	}
	i := slices.IndexFunc(x.records, func(r Record) bool { return r.ID == id })
	if i < 0 {
		return Record{}, false
	}
	return x.records[i], true
}

// Equal reports whether both indexes hold the same identifiers in the same
// order with bit-identical vectors.
func (x *Index) Equal(y *Index) bool {
	if x.Len() != y.Len() {
		return false
	}
	for i := range x.Records() {
		a, b := x.records[i], y.records[i]
		if a.ID != b.ID || len(a.Vector) != len(b.Vector) {
			return false
		}
		for j := range a.Vector {
			if math.Float32bits(a.Vector[j]) != math.Float32bits(b.Vector[j]) {
				return false
			}
		}
	}
	return true
}
