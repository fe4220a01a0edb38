package fsengine

import (
	"github.com/parasource/branchfs/internal/common"
	"github.com/parasource/branchfs/internal/ferrors"
)

// walkResult is the single lock the walk leaves the caller holding: the
// target inode for READ/WRITE, or the parent directory for CREATE/DELETE.
type walkResult struct {
	inode     uint32
	heldWrite bool
}

func (e *Engine) unlockResult(wr *walkResult) {
	if wr.heldWrite {
		e.locks.WUnlock(wr.inode)
	} else {
		e.locks.RUnlock(wr.inode)
	}
}

// walk performs a hand-over-hand lock walk: it holds at most two inode
// locks at any instant (the one it is releasing and the one it just
// acquired), walking strictly root-to-leaf so that two threads can
// never acquire locks in opposing orders.
func (e *Engine) walk(user string, tokens []string, depth int, verb Verb) (*walkResult, error) {
	current := common.RootInode
	var heldWrite bool

	if depth == 0 && (verb == VerbCreate || verb == VerbDelete) {
		if err := e.locks.WLock(current); err != nil {
			return nil, err
		}
		heldWrite = true
	} else {
		if err := e.locks.RLock(current); err != nil {
			return nil, err
		}
		heldWrite = false
	}

	for i := 0; i < depth; i++ {
		inode, err := e.readInode(current)
		if err != nil {
			e.unlockResult(&walkResult{current, heldWrite})
			return nil, err
		}
		if inode.Type != common.TypeDir {
			e.unlockResult(&walkResult{current, heldWrite})
			return nil, ferrors.ErrNotDir
		}
		if inode.Owner != "" && inode.Owner != user {
			e.unlockResult(&walkResult{current, heldWrite})
			return nil, ferrors.ErrNotOwner
		}

		child, found, err := e.findChild(inode, tokens[i])
		if err != nil {
			e.unlockResult(&walkResult{current, heldWrite})
			return nil, err
		}
		if !found {
			e.unlockResult(&walkResult{current, heldWrite})
			return nil, ferrors.ErrNotFound
		}

		lastStep := i == depth-1
		wantWrite := lastStep && verb != VerbRead

		if wantWrite {
			if err := e.locks.WLock(child); err != nil {
				e.unlockResult(&walkResult{current, heldWrite})
				return nil, err
			}
		} else {
			if err := e.locks.RLock(child); err != nil {
				e.unlockResult(&walkResult{current, heldWrite})
				return nil, err
			}
		}
		e.unlockResult(&walkResult{current, heldWrite})

		current = child
		heldWrite = wantWrite
	}

	return &walkResult{inode: current, heldWrite: heldWrite}, nil
}

// findChild scans every directory block of dir for a live entry named
// name.
func (e *Engine) findChild(dir *Inode, name string) (child uint32, found bool, err error) {
	for bi := uint32(0); bi < dir.Size; bi++ {
		entries, err := e.readDir(dir.Blocks[bi])
		if err != nil {
			return 0, false, err
		}
		for _, ent := range entries {
			if ent.Inode != 0 && ent.Name == name {
				return ent.Inode, true, nil
			}
		}
	}
	return 0, false, nil
}
