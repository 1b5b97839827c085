// Package barcode maintains a bloom-filter screen over the known product
// barcodes. Scans that definitely match no product are rejected locally,
// skipping the upstream catalog round-trip; possible matches (including the
// filter's false positives) still go upstream for the authoritative answer.
package barcode

import (
	"context"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// Source streams the known barcodes, typically from the barcode table
// populated by the ingest tool.
type Source interface {
	EachBarcode(ctx context.Context, fn func(code string) error) error
}

// Index is the in-memory barcode screen. It is safe for concurrent use.
type Index struct {
	capacity uint
	fpr      float64

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewIndex sizes the filter for the expected barcode count at the given
// false positive rate.
func NewIndex(capacity uint, fpr float64) *Index {
	return &Index{
		capacity: capacity,
		fpr:      fpr,
		filter:   bloom.NewWithEstimates(capacity, fpr),
	}
}

// Load replaces the filter contents from the source. Called at startup and
// on demand after an ingest run.
func (i *Index) Load(ctx context.Context, src Source) (int, error) {
	fresh := bloom.NewWithEstimates(i.capacity, i.fpr)
	count := 0
	err := src.EachBarcode(ctx, func(code string) error {
		code = normalizeCode(code)
		if code == "" {
			return nil
		}
		fresh.AddString(code)
		count++
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "stream barcodes")
	}

	i.mu.Lock()
	i.filter = fresh
	i.mu.Unlock()
	return count, nil
}

// Add registers one barcode.
func (i *Index) Add(code string) {
	code = normalizeCode(code)
	if code == "" {
		return
	}
	i.mu.Lock()
	i.filter.AddString(code)
	i.mu.Unlock()
}

// MayContain reports whether the barcode might be known. False means the
// barcode is definitely not in the catalog snapshot the filter was built
// from; true may be a false positive.
func (i *Index) MayContain(code string) bool {
	code = normalizeCode(code)
	if code == "" {
		return false
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.filter.TestString(code)
}

// Default sizing for a grocery catalog's barcode universe.
const (
	DefaultCapacity = 1_000_000
	DefaultFPR      = 0.001
)

func normalizeCode(code string) string {
	return strings.TrimSpace(code)
}
