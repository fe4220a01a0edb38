package fsengine

import (
	"encoding/binary"

	"github.com/parasource/branchfs/internal/common"
)

// Inode is the in-memory decoding of one inode block: a type byte, an
// owner ("" means public), a size, and a vector of block pointers.
// On-disk layout is fixed-width so every inode occupies
// exactly one common.BlockSize block:
//
//	offset 0                 : type byte
//	offset 1..MaxUserName+1  : NUL-terminated owner string
//	offset after owner        : uint32 size (little-endian)
//	offset after size         : MaxFileBlocks x uint32 block pointers
type Inode struct {
	Type  common.InodeType
	Owner string
	Size  uint32
	Blocks [common.MaxFileBlocks]uint32
}

const (
	inodeTypeOff   = 0
	inodeOwnerOff  = inodeTypeOff + 1
	inodeOwnerLen  = common.MaxUserName + 1
	inodeSizeOff   = inodeOwnerOff + inodeOwnerLen
	inodeBlocksOff = inodeSizeOff + 4
)

func encodeInode(in *Inode, buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	buf[inodeTypeOff] = byte(in.Type)
	copy(buf[inodeOwnerOff:inodeOwnerOff+inodeOwnerLen-1], in.Owner)
	binary.LittleEndian.PutUint32(buf[inodeSizeOff:], in.Size)
	for i, b := range in.Blocks {
		binary.LittleEndian.PutUint32(buf[inodeBlocksOff+4*i:], b)
	}
}

func decodeInode(buf []byte) *Inode {
	in := &Inode{Type: common.InodeType(buf[inodeTypeOff])}
	in.Owner = cStringFrom(buf[inodeOwnerOff : inodeOwnerOff+inodeOwnerLen])
	in.Size = binary.LittleEndian.Uint32(buf[inodeSizeOff:])
	for i := range in.Blocks {
		in.Blocks[i] = binary.LittleEndian.Uint32(buf[inodeBlocksOff+4*i:])
	}
	return in
}

// cStringFrom reads a NUL-terminated string out of a fixed-width field,
// never returning more than the bytes before the first NUL.
func cStringFrom(field []byte) string {
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}
