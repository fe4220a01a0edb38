package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasource/branchfs/internal/ferrors"
)

func TestAllocator_AllocateAndRelease(t *testing.T) {
	a := New(8)
	assert.Equal(t, 8, a.Count())

	b, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 7, a.Count())

	a.Release(b)
	assert.Equal(t, 8, a.Count())
}

func TestAllocator_AllocateNIsAllOrNothing(t *testing.T) {
	a := New(4)

	_, err := a.AllocateN(5)
	assert.Error(t, err)
	assert.Equal(t, 4, a.Count(), "a failed AllocateN must not consume any blocks")

	blocks, err := a.AllocateN(4)
	require.NoError(t, err)
	assert.Len(t, blocks, 4)
	assert.Equal(t, 0, a.Count())

	_, err = a.Allocate()
	assert.ErrorIs(t, err, ferrors.ErrNoSpace)
}

func TestAllocator_ReclaimRemovesFromFreeSet(t *testing.T) {
	a := New(10)
	a.Reclaim([]uint32{0, 3, 7})
	assert.Equal(t, 7, a.Count())

	// reclaiming the same block twice must not double count
	a.Reclaim([]uint32{3})
	assert.Equal(t, 7, a.Count())
}

func TestAllocator_NoDuplicateBlockAcrossAllocations(t *testing.T) {
	a := New(16)
	seen := make(map[uint32]bool)
	for i := 0; i < 16; i++ {
		b, err := a.Allocate()
		require.NoError(t, err)
		assert.False(t, seen[b], "block %d allocated twice", b)
		seen[b] = true
	}
	_, err := a.Allocate()
	assert.Error(t, err)
}
