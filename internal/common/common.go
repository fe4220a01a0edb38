// Package common holds the on-disk and on-wire size constants shared by
// the layers of the server: the disk adapters, the FS engine, the wire
// framer and the protocol parser size their buffers from here so the
// disk layout and the protocol stay byte-compatible with themselves
// across a restart.
package common

const (
	// BlockSize is the size in bytes of a single addressable disk block.
	BlockSize = 1024

	// DiskSize is the number of addressable blocks on the device.
	// Block 0 permanently holds the root inode and is never reclaimed.
	DiskSize = 65536

	// MaxFileName is the maximum length, in bytes, of one path
	// component (a directory entry name), not counting the NUL
	// terminator.
	MaxFileName = 28

	// MaxPathName bounds the total length of a path as it appears on
	// the wire.
	MaxPathName = 1024

	// MaxFileBlocks bounds both the number of data blocks a file inode
	// may hold and the number of directory blocks a directory inode may
	// hold.
	MaxFileBlocks = 124

	// MaxUserName and MaxPassword bound the credential fields read from
	// stdin at startup and the username field of the request header.
	MaxUserName = 64
	MaxPassword = 64

	// direntryNameField is MaxFileName plus its NUL terminator.
	direntryNameField = MaxFileName + 1

	// direntrySize is the on-disk size of one directory entry: a
	// NUL-terminated name field plus a 4-byte little-endian inode
	// pointer.
	direntrySize = direntryNameField + 4

	// DirEntries is how many directory entries fit in one block.
	DirEntries = BlockSize / direntrySize

	// inodeOwnerField is MaxUserName plus its NUL terminator.
	inodeOwnerField = MaxUserName + 1
)

// InodeType tags an inode block as a file or a directory.
type InodeType byte

const (
	TypeFile InodeType = 'f'
	TypeDir  InodeType = 'd'
)

// RootInode is the fixed block number of the filesystem root, which can
// never be reclaimed and is never reachable as a directory entry (entry
// value 0 is reserved as the free-slot sentinel).
const RootInode uint32 = 0
