// Package lockmap implements the per-inode reader/writer lock manager,
// built on plain condition variables: no writer preference, readers
// block while any writer holds or is mid-critical-section, writers
// block while any reader or writer holds, and at unlock a writer wakes
// all readers and at most one writer while a reader dropping to zero
// wakes at most one writer.
package lockmap

import (
	"sync"

	"github.com/parasource/branchfs/internal/ferrors"
)

// rwlock is the per-inode lock: a mutex, one wait condition for
// readers, one for writers, and plain reader/writer counts.
type rwlock struct {
	mu       sync.Mutex
	readCond sync.Cond
	writeCond sync.Cond
	readers   int
	writers   int
}

func newRWLock() *rwlock {
	l := &rwlock{}
	l.readCond.L = &l.mu
	l.writeCond.L = &l.mu
	return l
}

func (l *rwlock) rLock() {
	l.mu.Lock()
	for l.writers > 0 {
		l.readCond.Wait()
	}
	l.readers++
	l.mu.Unlock()
}

func (l *rwlock) rUnlock() {
	l.mu.Lock()
	l.readers--
	if l.readers == 0 {
		l.writeCond.Signal()
	}
	l.mu.Unlock()
}

func (l *rwlock) wLock() {
	l.mu.Lock()
	for l.readers+l.writers > 0 {
		l.writeCond.Wait()
	}
	l.writers++
	l.mu.Unlock()
}

func (l *rwlock) wUnlock() {
	l.mu.Lock()
	l.writers--
	l.readCond.Broadcast()
	l.writeCond.Signal()
	l.mu.Unlock()
}

// Manager maps inode block numbers to their rwlock: a lock exists if
// and only if the inode block is currently allocated to an inode. The
// map mutex only ever guards the lookup itself; once a
// caller has the *rwlock pointer it blocks on that lock alone, never on
// the table.
type Manager struct {
	mu    sync.Mutex
	locks map[uint32]*rwlock
}

func New() *Manager {
	return &Manager{locks: make(map[uint32]*rwlock)}
}

// Add registers a fresh, unheld lock for inode i. Called when an inode
// is born: at startup for every inode found by traversal from the root,
// and by CREATE for the new inode it just wrote.
func (m *Manager) Add(i uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[i] = newRWLock()
}

// Drop removes the lock for inode i. This is only legal while the
// caller holds the write lock on i and no other thread is blocked on
// it, in practice immediately after WUnlock at the end of DELETE,
// with the parent's write lock still held so no walker can reach i
// again.
func (m *Manager) Drop(i uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, i)
}

func (m *Manager) lookup(i uint32) (*rwlock, error) {
	m.mu.Lock()
	l, ok := m.locks[i]
	m.mu.Unlock()
	if !ok {
		return nil, ferrors.ErrNoSuchLock
	}
	return l, nil
}

func (m *Manager) RLock(i uint32) error {
	l, err := m.lookup(i)
	if err != nil {
		return err
	}
	l.rLock()
	return nil
}

func (m *Manager) RUnlock(i uint32) error {
	l, err := m.lookup(i)
	if err != nil {
		return err
	}
	l.rUnlock()
	return nil
}

func (m *Manager) WLock(i uint32) error {
	l, err := m.lookup(i)
	if err != nil {
		return err
	}
	l.wLock()
	return nil
}

func (m *Manager) WUnlock(i uint32) error {
	l, err := m.lookup(i)
	if err != nil {
		return err
	}
	l.wUnlock()
	return nil
}

// Len reports the number of currently-registered locks, used by tests
// checking lock hygiene: a lock exists for every reachable inode and
// no others.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Has reports whether inode i currently has a registered lock.
func (m *Manager) Has(i uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[i]
	return ok
}
