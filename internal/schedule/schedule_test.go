package schedule

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptfix/internal/faults"
	"receiptfix/internal/units"
)

func makeUnits(n int) []*units.Unit {
	us := make([]*units.Unit, n)
	for i := range us {
		us[i] = &units.Unit{Key: int64(i + 1)}
	}
	return us
}

func TestChunk(t *testing.T) {
	batches, err := Chunk(makeUnits(45), 20)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 20)
	assert.Len(t, batches[1], 20)
	assert.Len(t, batches[2], 5)

	// Original order preserved across batch boundaries.
	next := int64(1)
	for _, b := range batches {
		for _, u := range b {
			assert.Equal(t, next, u.Key)
			next++
		}
	}
}

func TestChunk_Empty(t *testing.T) {
	batches, err := Chunk(nil, 20)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestChunk_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			_, err := Chunk(makeUnits(3), size)
			require.Error(t, err)
			assert.True(t, errors.Is(err, faults.ErrInvalidConfiguration))
		})
	}
}
