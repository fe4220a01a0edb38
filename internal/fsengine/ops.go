package fsengine

import (
	"github.com/parasource/branchfs/internal/common"
	"github.com/parasource/branchfs/internal/ferrors"
)

// Execute tokenizes op.Path, walks the tree under the lock manager, and
// dispatches to the operation named by op.Verb. It is the single entry
// point that performs all four operations, parameterized by verb,
// path, optional offset, optional create-type, and optional data
// block.
func (e *Engine) Execute(user string, op Op) (Result, error) {
	tokens, err := tokenizePath(op.Path)
	if err != nil {
		return Result{}, err
	}

	depth := len(tokens)
	if op.Verb == VerbCreate || op.Verb == VerbDelete {
		depth = len(tokens) - 1
	}

	wr, err := e.walk(user, tokens, depth, op.Verb)
	if err != nil {
		return Result{}, err
	}

	inode, err := e.readInode(wr.inode)
	if err != nil {
		e.unlockResult(wr)
		return Result{}, err
	}
	if inode.Owner != "" && inode.Owner != user {
		e.unlockResult(wr)
		return Result{}, ferrors.ErrNotOwner
	}

	switch op.Verb {
	case VerbRead:
		return e.doRead(wr, inode, op)
	case VerbWrite:
		return e.doWrite(wr, inode, op)
	case VerbCreate:
		return e.doCreate(wr, inode, user, tokens[len(tokens)-1], op)
	case VerbDelete:
		return e.doDelete(wr, inode, user, tokens[len(tokens)-1])
	default:
		e.unlockResult(wr)
		return Result{}, ferrors.ErrUnknownVerb
	}
}

// doRead implements READ(offset).
func (e *Engine) doRead(wr *walkResult, target *Inode, op Op) (Result, error) {
	defer e.unlockResult(wr)

	if target.Type != common.TypeFile {
		return Result{}, ferrors.ErrNotFile
	}
	if op.Offset >= target.Size {
		return Result{}, ferrors.ErrOffsetRange
	}

	buf := make([]byte, common.BlockSize)
	if err := e.disk.ReadBlock(target.Blocks[op.Offset], buf); err != nil {
		return Result{}, err
	}
	return Result{Data: buf}, nil
}

// doWrite implements WRITE(offset, data).
func (e *Engine) doWrite(wr *walkResult, target *Inode, op Op) (Result, error) {
	defer e.unlockResult(wr)

	if target.Type != common.TypeFile {
		return Result{}, ferrors.ErrNotFile
	}
	if op.Offset > target.Size {
		return Result{}, ferrors.ErrOffsetRange
	}
	if op.Offset >= common.MaxFileBlocks {
		return Result{}, ferrors.ErrBlockLimit
	}

	appending := op.Offset == target.Size

	var blockIdx uint32
	if appending {
		b, err := e.alloc.Allocate()
		if err != nil {
			return Result{}, err
		}
		blockIdx = b
	} else {
		blockIdx = target.Blocks[op.Offset]
	}

	if err := e.disk.WriteBlock(blockIdx, op.Data); err != nil {
		if appending {
			e.alloc.Release(blockIdx)
		}
		return Result{}, err
	}

	// The inode need not be rewritten for an in-place overwrite; for an
	// append, persisting the inode is the last step of the success
	// path, after the data block itself is durable.
	if appending {
		target.Blocks[op.Offset] = blockIdx
		target.Size++
		if err := e.writeInode(wr.inode, target); err != nil {
			return Result{}, err
		}
	}

	return Result{}, nil
}

// doCreate implements CREATE(name, type). parent is the parent
// directory, held under a write lock by the walk.
func (e *Engine) doCreate(wr *walkResult, parent *Inode, user, name string, op Op) (Result, error) {
	defer e.unlockResult(wr)

	if op.CreateType != byte(common.TypeFile) && op.CreateType != byte(common.TypeDir) {
		return Result{}, ferrors.ErrBadCreateType
	}
	if parent.Type != common.TypeDir {
		return Result{}, ferrors.ErrNotDir
	}

	freeBlockPos, freeSlot := -1, -1
	for bi := uint32(0); bi < parent.Size; bi++ {
		entries, err := e.readDir(parent.Blocks[bi])
		if err != nil {
			return Result{}, err
		}
		for si, ent := range entries {
			if ent.Inode == 0 {
				if freeBlockPos == -1 {
					freeBlockPos, freeSlot = int(bi), si
				}
				continue
			}
			if ent.Name == name {
				return Result{}, ferrors.ErrExists
			}
		}
	}

	needsNewDirBlock := freeBlockPos == -1
	if needsNewDirBlock && parent.Size >= common.MaxFileBlocks {
		return Result{}, ferrors.ErrBlockLimit
	}

	demand := 1
	if needsNewDirBlock {
		demand = 2
	}
	blocks, err := e.alloc.AllocateN(demand)
	if err != nil {
		return Result{}, err
	}

	newInodeBlock := blocks[0]
	newInode := &Inode{Type: common.InodeType(op.CreateType), Owner: user, Size: 0}
	if err := e.writeInode(newInodeBlock, newInode); err != nil {
		for _, b := range blocks {
			e.alloc.Release(b)
		}
		return Result{}, err
	}
	e.locks.Add(newInodeBlock)

	if needsNewDirBlock {
		dirBlock := blocks[1]
		entries := make([]Direntry, common.DirEntries)
		entries[0] = Direntry{Name: name, Inode: newInodeBlock}
		if err := e.writeDir(dirBlock, entries); err != nil {
			return Result{}, err
		}

		// Persist the new direntry block before the parent inode that
		// points to it, so a crash between the two writes never leaves
		// the parent pointing at a direntry block that was never
		// written.
		parent.Blocks[parent.Size] = dirBlock
		parent.Size++
		if err := e.writeInode(wr.inode, parent); err != nil {
			return Result{}, err
		}
	} else {
		entries, err := e.readDir(parent.Blocks[freeBlockPos])
		if err != nil {
			return Result{}, err
		}
		entries[freeSlot] = Direntry{Name: name, Inode: newInodeBlock}
		if err := e.writeDir(parent.Blocks[freeBlockPos], entries); err != nil {
			return Result{}, err
		}
	}

	return Result{}, nil
}

// doDelete implements DELETE(name). parent is the parent directory,
// held under a write lock by the walk.
func (e *Engine) doDelete(wr *walkResult, parent *Inode, user, name string) (Result, error) {
	defer e.unlockResult(wr)

	if parent.Type != common.TypeDir {
		return Result{}, ferrors.ErrNotDir
	}

	blockPos, slot := -1, -1
	var entries []Direntry
	for bi := uint32(0); bi < parent.Size; bi++ {
		es, err := e.readDir(parent.Blocks[bi])
		if err != nil {
			return Result{}, err
		}
		for si, ent := range es {
			if ent.Inode != 0 && ent.Name == name {
				blockPos, slot = int(bi), si
				entries = es
				break
			}
		}
		if blockPos != -1 {
			break
		}
	}
	if blockPos == -1 {
		return Result{}, ferrors.ErrNotFound
	}

	childNum := entries[slot].Inode
	if err := e.locks.WLock(childNum); err != nil {
		return Result{}, err
	}

	child, err := e.readInode(childNum)
	if err != nil {
		e.locks.WUnlock(childNum)
		return Result{}, err
	}
	if child.Type == common.TypeDir && child.Size > 0 {
		e.locks.WUnlock(childNum)
		return Result{}, ferrors.ErrNotEmpty
	}
	if child.Owner != "" && child.Owner != user {
		e.locks.WUnlock(childNum)
		return Result{}, ferrors.ErrNotOwner
	}

	liveCount := 0
	for _, ent := range entries {
		if ent.Inode != 0 {
			liveCount++
		}
	}

	var evictedDirBlock uint32
	evictDirBlock := liveCount == 1
	if evictDirBlock {
		evictedDirBlock = parent.Blocks[blockPos]
		for i := blockPos; i+1 < int(parent.Size); i++ {
			parent.Blocks[i] = parent.Blocks[i+1]
		}
		parent.Size--
		if err := e.writeInode(wr.inode, parent); err != nil {
			e.locks.WUnlock(childNum)
			return Result{}, err
		}
	} else {
		entries[slot] = Direntry{}
		if err := e.writeDir(parent.Blocks[blockPos], entries); err != nil {
			e.locks.WUnlock(childNum)
			return Result{}, err
		}
	}

	// Only release blocks to the allocator once the parent's new image
	// (the rewritten inode or the rewritten direntry block) is on
	// disk, never before: releasing first could let a concurrent
	// allocation reuse a block the parent still points to.
	if evictDirBlock {
		e.alloc.Release(evictedDirBlock)
	}
	if child.Type == common.TypeFile {
		for i := uint32(0); i < child.Size; i++ {
			e.alloc.Release(child.Blocks[i])
		}
	}
	e.alloc.Release(childNum)

	e.locks.WUnlock(childNum)
	e.locks.Drop(childNum)

	return Result{}, nil
}
