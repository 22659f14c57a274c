// Package schedule chunks an ordered unit sequence into fixed-size batches.
// Batches run strictly in sequence: the remote-job parameter of batch N+1
// depends on which units of batch N survived its correction phase, so there
// is no room for overlap.
package schedule

import (
	"fmt"

	"receiptfix/internal/faults"
	"receiptfix/internal/units"
)

// Chunk slices us into batches of at most size units, preserving order. The
// final batch may be shorter. A non-positive size is a configuration error.
func Chunk(us []*units.Unit, size int) ([][]*units.Unit, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size %d: %w", size, faults.ErrInvalidConfiguration)
	}

	var batches [][]*units.Unit
	for start := 0; start < len(us); start += size {
		end := start + size
		if end > len(us) {
			end = len(us)
		}
		batches = append(batches, us[start:end])
	}
	return batches, nil
}
