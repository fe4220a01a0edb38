// Package disk defines the block device the FS engine is built on top
// of: two blocking, atomic-per-block primitives, with two
// interchangeable implementations (a local file and a redis-backed
// store) so the server can run against either.
package disk

import "github.com/parasource/branchfs/internal/common"

// Device is the block device adapter. Every call is expected to be
// atomic with respect to other calls on the same block number; the FS
// engine never assumes atomicity across two calls.
type Device interface {
	// ReadBlock reads exactly common.BlockSize bytes for block n into
	// buf, which must have length common.BlockSize.
	ReadBlock(n uint32, buf []byte) error

	// WriteBlock writes exactly common.BlockSize bytes from buf to
	// block n, which must have length common.BlockSize.
	WriteBlock(n uint32, buf []byte) error

	// Size returns the number of addressable blocks on the device.
	Size() uint32

	Close() error
}

type outOfRangeError struct {
	n    uint32
	size uint32
}

func (e *outOfRangeError) Error() string {
	return "disk: block out of range"
}

// CheckRange is shared by every Device implementation to reject a
// block number outside [0, size).
func CheckRange(n, size uint32) error {
	if n >= size {
		return &outOfRangeError{n: n, size: size}
	}
	return nil
}

type badBufferError struct{ got int }

func (e *badBufferError) Error() string {
	return "disk: buffer is not exactly one block"
}

// CheckBuf is shared by every Device implementation to validate the
// caller passed exactly one block's worth of bytes: every transfer is
// whole-block or rejected.
func CheckBuf(buf []byte) error {
	if len(buf) != common.BlockSize {
		return &badBufferError{got: len(buf)}
	}
	return nil
}
