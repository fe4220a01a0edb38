// Package alloc implements the free-block allocator: a single mutex
// guarding the set of currently-unallocated disk blocks, with
// all-or-nothing multi-block allocation and no ordering requirement on
// release. The free set is kept in a btree rather than a deque, since
// release order is unconstrained, so allocate() is always a cheap
// Min/DeleteMin instead of a front-of-queue pop.
package alloc

import (
	"sync"

	"github.com/google/btree"

	"github.com/parasource/branchfs/internal/ferrors"
)

// blockItem adapts a disk block index to btree.Item.
type blockItem uint32

func (b blockItem) Less(than btree.Item) bool {
	return b < than.(blockItem)
}

// Allocator tracks which of a disk's blocks are free. It never touches
// the disk itself: callers write a newly obtained block before
// publishing it into an inode.
type Allocator struct {
	mu    sync.Mutex
	free  *btree.BTree
	count int
}

// New seeds the allocator with every block in [0, size).
func New(size uint32) *Allocator {
	a := &Allocator{free: btree.New(32)}
	for i := uint32(0); i < size; i++ {
		a.free.ReplaceOrInsert(blockItem(i))
	}
	a.count = int(size)
	return a
}

// Reclaim removes every block in the given traversal result from the
// free set. Called once at startup after the FS engine's depth-first
// walk from the root has determined which blocks are reachable.
func (a *Allocator) Reclaim(reachable []uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range reachable {
		if a.free.Delete(blockItem(b)) != nil {
			a.count--
		}
	}
}

// Count returns the number of currently free blocks.
func (a *Allocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Allocate removes and returns one free block, or ferrors.ErrNoSpace if
// none remain.
func (a *Allocator) Allocate() (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocateLocked()
}

func (a *Allocator) allocateLocked() (uint32, error) {
	item := a.free.Min()
	if item == nil {
		return 0, ferrors.ErrNoSpace
	}
	a.free.Delete(item)
	a.count--
	return uint32(item.(blockItem)), nil
}

// AllocateN removes and returns k free blocks as a unit: either all k
// are returned, or none are removed and ferrors.ErrNoSpace is returned.
func (a *Allocator) AllocateN(k int) ([]uint32, error) {
	if k == 0 {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count < k {
		return nil, ferrors.ErrNoSpace
	}
	out := make([]uint32, 0, k)
	for i := 0; i < k; i++ {
		b, err := a.allocateLocked()
		if err != nil {
			// unreachable: count was checked above under the same lock
			for _, r := range out {
				a.free.ReplaceOrInsert(blockItem(r))
				a.count++
			}
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Release returns a block to the free set. Order of release is not a
// correctness requirement.
func (a *Allocator) Release(index uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.free.ReplaceOrInsert(blockItem(index)) == nil {
		a.count++
	}
}
