// Package fsengine is the sole mutator of disk state: it tokenizes
// paths, walks the directory tree hand-over-hand under the lock
// manager, and performs the four operations (CREATE, DELETE, READ,
// WRITE) while preserving the on-disk invariants of the filesystem.
package fsengine

import (
	"github.com/parasource/branchfs/internal/alloc"
	"github.com/parasource/branchfs/internal/common"
	"github.com/parasource/branchfs/internal/disk"
	"github.com/parasource/branchfs/internal/ferrors"
	"github.com/parasource/branchfs/internal/lockmap"
	"github.com/parasource/branchfs/internal/logging"
)

// Verb names the four mutating/reading operations, represented as a
// tagged union with a per-variant payload in Op.
type Verb int

const (
	VerbRead Verb = iota
	VerbWrite
	VerbCreate
	VerbDelete
)

// Op is the per-variant payload the protocol layer builds after
// parsing a decrypted request and hands to Engine.Execute.
type Op struct {
	Verb       Verb
	Path       string
	Offset     uint32
	CreateType byte // 'f' or 'd', CREATE only
	Data       []byte // exactly common.BlockSize bytes, WRITE only
}

// Result is everything Execute needs to hand back to the caller to
// build a response frame.
type Result struct {
	Data []byte // exactly common.BlockSize bytes, READ only
}

// Engine bundles the block device, the free-block allocator and the
// inode lock manager into the single value threaded through the path
// walk rather than relying on implicit globals.
type Engine struct {
	disk  disk.Device
	alloc *alloc.Allocator
	locks *lockmap.Manager
	log   *logging.Handler
}

// New constructs an Engine and reconstructs its in-memory state (the
// free-block list and the lock table) by a depth-first traversal from
// block 0: the free list is purely in-memory and is rebuilt this way
// on every startup.
func New(d disk.Device, log *logging.Handler) (*Engine, error) {
	e := &Engine{
		disk:  d,
		alloc: alloc.New(d.Size()),
		locks: lockmap.New(),
		log:   log,
	}

	if err := e.bootstrapRoot(); err != nil {
		return nil, ferrors.Wrap("bootstrapping root", err)
	}

	reachable, err := e.traverse(common.RootInode)
	if err != nil {
		return nil, ferrors.Wrap("startup traversal", err)
	}
	e.alloc.Reclaim(reachable)

	return e, nil
}

// bootstrapRoot initializes block 0 as an empty, publicly-owned root
// directory the first time a disk is opened, when neither inode tag
// a real disk ever writes is present.
func (e *Engine) bootstrapRoot() error {
	root, err := e.readInode(common.RootInode)
	if err != nil {
		return err
	}
	if root.Type == common.TypeFile || root.Type == common.TypeDir {
		return nil
	}
	return e.writeInode(common.RootInode, &Inode{Type: common.TypeDir})
}

// traverse performs a depth-first walk from the root: every block it
// visits is either the root or reachable from the root, so these are
// exactly the blocks to remove from the allocator's initial
// [0, DiskSize) free set. It also registers a lock for every inode it
// finds, so every reachable inode has a lock before any client
// connection is accepted.
func (e *Engine) traverse(inodeNum uint32) ([]uint32, error) {
	inode, err := e.readInode(inodeNum)
	if err != nil {
		return nil, err
	}
	e.locks.Add(inodeNum)

	reachable := []uint32{inodeNum}

	if inode.Type != common.TypeDir {
		for i := uint32(0); i < inode.Size; i++ {
			reachable = append(reachable, inode.Blocks[i])
		}
		return reachable, nil
	}

	for i := uint32(0); i < inode.Size; i++ {
		dirBlock := inode.Blocks[i]
		reachable = append(reachable, dirBlock)

		entries, err := e.readDir(dirBlock)
		if err != nil {
			return nil, err
		}
		for _, ent := range entries {
			if ent.Inode == common.RootInode {
				continue
			}
			sub, err := e.traverse(ent.Inode)
			if err != nil {
				return nil, err
			}
			reachable = append(reachable, sub...)
		}
	}

	return reachable, nil
}

func (e *Engine) readInode(n uint32) (*Inode, error) {
	buf := make([]byte, common.BlockSize)
	if err := e.disk.ReadBlock(n, buf); err != nil {
		return nil, err
	}
	return decodeInode(buf), nil
}

func (e *Engine) writeInode(n uint32, in *Inode) error {
	buf := make([]byte, common.BlockSize)
	encodeInode(in, buf)
	return e.disk.WriteBlock(n, buf)
}

func (e *Engine) readDir(n uint32) ([]Direntry, error) {
	buf := make([]byte, common.BlockSize)
	if err := e.disk.ReadBlock(n, buf); err != nil {
		return nil, err
	}
	return decodeDirBlock(buf), nil
}

func (e *Engine) writeDir(n uint32, entries []Direntry) error {
	buf := make([]byte, common.BlockSize)
	encodeDirBlock(entries, buf)
	return e.disk.WriteBlock(n, buf)
}

// FreeBlocks reports the allocator's current free-block count, for
// tests checking that allocated and free blocks stay partitioned
// across operation sequences.
func (e *Engine) FreeBlocks() int {
	return e.alloc.Count()
}

// HasLock reports whether inode i currently has a registered lock, for
// tests checking lock hygiene.
func (e *Engine) HasLock(i uint32) bool {
	return e.locks.Has(i)
}
