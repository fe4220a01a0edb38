package fsengine

import (
	"encoding/binary"

	"github.com/parasource/branchfs/internal/common"
)

// Direntry is one (name, inode_block) pair within a directory block.
// Inode == 0 marks a free slot: the root, block 0, can never appear as
// a child, so 0 is a safe sentinel.
type Direntry struct {
	Name  string
	Inode uint32
}

const (
	direntNameLen = common.MaxFileName + 1
	direntSize    = direntNameLen + 4
)

func encodeDirBlock(entries []Direntry, buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	for i, e := range entries {
		off := i * direntSize
		copy(buf[off:off+direntNameLen-1], e.Name)
		binary.LittleEndian.PutUint32(buf[off+direntNameLen:], e.Inode)
	}
}

func decodeDirBlock(buf []byte) []Direntry {
	entries := make([]Direntry, common.DirEntries)
	for i := range entries {
		off := i * direntSize
		entries[i] = Direntry{
			Name:  cStringFrom(buf[off : off+direntNameLen]),
			Inode: binary.LittleEndian.Uint32(buf[off+direntNameLen:]),
		}
	}
	return entries
}
