// Package filedisk implements disk.Device over a single regular file,
// using pread(2)/pwrite(2) so concurrent block accesses never need a
// shared file-offset cursor and each call is atomic with respect to the
// others. Preallocation tries fallocate first and falls back to a
// plain truncate on filesystems that don't support it.
package filedisk

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/parasource/branchfs/internal/common"
	"github.com/parasource/branchfs/internal/disk"
)

var fallocFlags = [...]uint32{
	unix.FALLOC_FL_KEEP_SIZE,
	unix.FALLOC_FL_KEEP_SIZE | unix.FALLOC_FL_PUNCH_HOLE,
}

type Disk struct {
	f    *os.File
	size uint32

	fallocIndex int32
}

// Open opens (creating if necessary) the file at path and preallocates
// it to hold size blocks of common.BlockSize bytes each.
func Open(path string, size uint32) (*Disk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	d := &Disk{f: f, size: size}
	total := int64(size) * int64(common.BlockSize)
	if err := d.preallocate(total); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func (d *Disk) preallocate(sizeInBytes int64) error {
	index := atomic.LoadInt32(&d.fallocIndex)
again:
	if index >= int32(len(fallocFlags)) {
		// fallocate is unsupported on this filesystem; fall back to a
		// plain truncate so reads past the current EOF still succeed.
		return d.f.Truncate(sizeInBytes)
	}
	flags := fallocFlags[index]
	err := unix.Fallocate(int(d.f.Fd()), flags, 0, sizeInBytes)
	if err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
		index++
		atomic.StoreInt32(&d.fallocIndex, index)
		goto again
	}
	if err != nil {
		return err
	}
	return d.f.Truncate(sizeInBytes)
}

func (d *Disk) Size() uint32 { return d.size }

func (d *Disk) ReadBlock(n uint32, buf []byte) error {
	if err := disk.CheckRange(n, d.size); err != nil {
		return err
	}
	if err := disk.CheckBuf(buf); err != nil {
		return err
	}
	off := int64(n) * int64(common.BlockSize)
	read := 0
	for read < len(buf) {
		m, err := unix.Pread(int(d.f.Fd()), buf[read:], off+int64(read))
		if err != nil {
			return err
		}
		if m == 0 {
			break
		}
		read += m
	}
	for ; read < len(buf); read++ {
		buf[read] = 0
	}
	return nil
}

func (d *Disk) WriteBlock(n uint32, buf []byte) error {
	if err := disk.CheckRange(n, d.size); err != nil {
		return err
	}
	if err := disk.CheckBuf(buf); err != nil {
		return err
	}
	off := int64(n) * int64(common.BlockSize)
	written := 0
	for written < len(buf) {
		m, err := unix.Pwrite(int(d.f.Fd()), buf[written:], off+int64(written))
		if err != nil {
			return err
		}
		written += m
	}
	return nil
}

func (d *Disk) Close() error {
	return d.f.Close()
}
