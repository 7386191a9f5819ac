package embedstore

import (
	"errors"
	"fmt"
)

// ErrCorrupt reports a truncated or malformed index stream.
var ErrCorrupt = errors.New("embedstore: corrupt index")

// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
type ErrDimensionMismatch struct {
	ID       string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedstore: record %q: dimension mismatch: expected %d, got %d", e.ID, e.Expected, e.Actual)
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}
