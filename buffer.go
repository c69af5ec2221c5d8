package hedgehog

import (
	"os"

	"golang.org/x/sys/unix"
)

// rMax is the default upper bound on the size of a single mmap region
// (2^31 - 1 bytes). Platforms that mmap with a 32-bit length argument cap
// out here; segmentedBuffer exists so a logical file can exceed this by
// spanning several independently-mapped regions.
const rMax int64 = (1 << 31) - 1

// minMappedSize is the floor every data and index file is grown to, even
// when a caller asks for less.
const minMappedSize int64 = 1 << 20 // 1 MiB

// segmentedBuffer is a byte-addressable, growable cursor over a file that
// may exceed one mappable region. It splits the logical file into
// independently-mapped fixed-size regions and presents them as a single
// contiguous buffer with one 64-bit logical cursor.
//
// A segmentedBuffer is not safe for concurrent use; the map engine
// serializes all access to a shard's buffers behind the shard's lock.
type segmentedBuffer struct {
	filename      string
	persistent    bool
	maxRegionSize int64
	regions       [][]byte
	capacity      int64
	position      int64
}

// newSegmentedBuffer opens filename (creating it if necessary), maps it as
// ceil(effectiveSize/maxRegionSize) regions, and returns a buffer positioned
// at cursor 0. effectiveSize is max(targetSize, minMappedSize,
// currentFileSize) per the construction contract in the storage design.
func newSegmentedBuffer(filename string, targetSize int64, persistent bool, maxRegionSize int64) (*segmentedBuffer, error) {
	if maxRegionSize <= 0 {
		maxRegionSize = rMax
	}

	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, wrapIO(err, "open", filename)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, wrapIO(err, "stat", filename)
	}

	effectiveSize := targetSize
	if minMappedSize > effectiveSize {
		effectiveSize = minMappedSize
	}
	if info.Size() > effectiveSize {
		effectiveSize = info.Size()
	}

	if info.Size() < effectiveSize {
		if err := file.Truncate(effectiveSize); err != nil {
			return nil, wrapIO(err, "truncate", filename)
		}
	}

	regionCount := int((effectiveSize + maxRegionSize - 1) / maxRegionSize)
	if regionCount == 0 {
		regionCount = 1
	}

	regions := make([][]byte, 0, regionCount)
	for i := 0; i < regionCount; i++ {
		offset := int64(i) * maxRegionSize
		size := maxRegionSize
		if i == regionCount-1 {
			size = effectiveSize - offset
		}

		region, err := unix.Mmap(int(file.Fd()), offset, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			for _, mapped := range regions {
				unix.Munmap(mapped)
			}
			return nil, wrapIO(err, "mmap", filename)
		}
		regions = append(regions, region)
	}

	return &segmentedBuffer{
		filename:      filename,
		persistent:    persistent,
		maxRegionSize: maxRegionSize,
		regions:       regions,
		capacity:      effectiveSize,
	}, nil
}

// Position returns the current logical cursor.
func (b *segmentedBuffer) Position() int64 { return b.position }

// SetPosition moves the logical cursor. The new position is not validated
// against capacity until the next Put/Get; Grow is the caller's
// responsibility when it would exceed capacity.
func (b *segmentedBuffer) SetPosition(p int64) { b.position = p }

// Capacity returns the sum of every region's mapped size.
func (b *segmentedBuffer) Capacity() int64 { return b.capacity }

// Put writes data starting at the cursor, advancing it by len(data). Writes
// that cross a region boundary are split across the affected regions.
func (b *segmentedBuffer) Put(data []byte) error {
	if b.position+int64(len(data)) > b.capacity {
		return ErrPositionOutOfRange
	}
	return b.transfer(data, true)
}

// Get reads len(dst) bytes starting at the cursor into dst, advancing the
// cursor. Reads that cross a region boundary are assembled contiguously
// into dst.
func (b *segmentedBuffer) Get(dst []byte) error {
	if b.position+int64(len(dst)) > b.capacity {
		return ErrPositionOutOfRange
	}
	return b.transfer(dst, false)
}

// transfer copies buf to/from the mapped regions at the current cursor,
// splitting at region boundaries, and advances the cursor by len(buf).
func (b *segmentedBuffer) transfer(buf []byte, write bool) error {
	remaining := buf
	pos := b.position

	for len(remaining) > 0 {
		regionIdx := int(pos / b.maxRegionSize)
		regionOff := pos % b.maxRegionSize
		region := b.regions[regionIdx]

		n := int64(len(region)) - regionOff
		if n > int64(len(remaining)) {
			n = int64(len(remaining))
		}

		if write {
			copy(region[regionOff:regionOff+n], remaining[:n])
		} else {
			copy(remaining[:n], region[regionOff:regionOff+n])
		}

		remaining = remaining[n:]
		pos += n
	}

	b.position = pos
	return nil
}

// Force flushes every mapped region to disk.
func (b *segmentedBuffer) Force() error {
	for _, region := range b.regions {
		if len(region) == 0 {
			continue
		}
		if err := unix.Msync(region, unix.MS_SYNC); err != nil {
			return wrapIO(err, "msync", b.filename)
		}
	}
	return nil
}

// unmapOnly releases every region's mapping without touching the backing
// file. It is used when the map engine or index store is about to map the
// same file again at a larger size (persistent data grow) or to delete and
// recreate it under the same name (index grow, compact), and must not race
// an unmap against a delete-on-close.
func (b *segmentedBuffer) unmapOnly() error {
	for _, region := range b.regions {
		if len(region) == 0 {
			continue
		}
		if err := unix.Munmap(region); err != nil {
			return wrapIO(err, "munmap", b.filename)
		}
	}
	b.regions = nil
	return nil
}

// Close unmaps every region and, for non-persistent buffers, deletes the
// backing file. The buffer must not be used after Close returns.
func (b *segmentedBuffer) Close() error {
	if err := b.unmapOnly(); err != nil {
		return err
	}

	if !b.persistent {
		if err := os.Remove(b.filename); err != nil && !os.IsNotExist(err) {
			return wrapIO(err, "delete", b.filename)
		}
	}
	return nil
}

// Filename returns the path backing this buffer.
func (b *segmentedBuffer) Filename() string { return b.filename }
