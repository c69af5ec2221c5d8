package hedgehog

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"
)

const (
	capacityHeaderSize = 4
	slotSize           = 4

	slotEmpty     uint32 = 0
	slotTombstone uint32 = 0xFFFFFFFF

	defaultIndexCapacity int64 = 1024
)

// indexEntry is one live (key, location) pair surfaced by liveEntries/entries.
type indexEntry[K any] struct {
	Key    K
	Offset int64
	Length int32
}

// indexStore is a persistent, growable, open-addressed hash table mapping
// keys of type K to (valueOffset, valueLength) pairs. Its on-disk layout is
// a 4-byte capacity header, a capacity-sized slot array, and an append-only
// log of length-prefixed key records.
//
// A slot holds 0 (empty, probe-terminating), slotTombstone (a removed
// entry, probe-continuing), or the byte offset of a key record. indexStore
// is not safe for concurrent use on its own; the shard that owns it
// serializes access under its lock.
type indexStore[K any] struct {
	buf             *segmentedBuffer
	keyCodec        Codec[K]
	capacity        int64
	size            int64
	initialCapacity int64
	persistent      bool
}

// newIndexStore opens or creates filename as an index file. If the file is
// new (or its capacity header is zero), the store is initialized fresh at
// max(initialCapacity, 1024) slots; otherwise it is restored from the
// file's existing slot array and key-record log.
func newIndexStore[K any](filename string, keyCodec Codec[K], initialCapacity, initialFileSize int64, persistent bool) (*indexStore[K], error) {
	if initialCapacity < defaultIndexCapacity {
		initialCapacity = defaultIndexCapacity
	}

	buf, err := newSegmentedBuffer(filename, initialFileSize, persistent, 0)
	if err != nil {
		return nil, err
	}

	s := &indexStore[K]{
		buf:             buf,
		keyCodec:        keyCodec,
		initialCapacity: initialCapacity,
		persistent:      persistent,
	}

	header := make([]byte, capacityHeaderSize)
	buf.SetPosition(0)
	if err := buf.Get(header); err != nil {
		return nil, err
	}
	capacityHeader := binary.BigEndian.Uint32(header)

	if capacityHeader == 0 {
		if err := s.initialize(); err != nil {
			return nil, err
		}
	} else {
		if err := s.restore(int64(capacityHeader)); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *indexStore[K]) initialize() error {
	s.capacity = s.initialCapacity
	s.size = 0

	header := make([]byte, capacityHeaderSize)
	binary.BigEndian.PutUint32(header, uint32(s.capacity))
	s.buf.SetPosition(0)
	if err := s.buf.Put(header); err != nil {
		return err
	}

	zeros := make([]byte, s.capacity*slotSize)
	if err := s.buf.Put(zeros); err != nil {
		return err
	}

	return nil
}

func (s *indexStore[K]) restore(capacity int64) error {
	s.capacity = capacity

	var maxPos int64
	var count int64
	for i := int64(0); i < capacity; i++ {
		v, err := s.readSlot(i)
		if err != nil {
			return err
		}
		if v == slotEmpty || v == slotTombstone {
			continue
		}
		count++
		if int64(v) > maxPos {
			maxPos = int64(v)
		}
	}
	s.size = count

	if maxPos == 0 {
		s.buf.SetPosition(capacityHeaderSize + capacity*slotSize)
		return nil
	}

	lenBuf := make([]byte, 4)
	s.buf.SetPosition(maxPos)
	if err := s.buf.Get(lenBuf); err != nil {
		return err
	}
	recordLen := int64(binary.BigEndian.Uint32(lenBuf))
	s.buf.SetPosition(maxPos + 4 + recordLen)

	log.WithFields(log.Fields{
		"file":     s.buf.Filename(),
		"capacity": capacity,
		"entries":  count,
		"cursor":   maxPos + 4 + recordLen,
	}).Info("hedgehog: restored index store")

	return nil
}

func (s *indexStore[K]) slotOffset(i int64) int64 {
	return capacityHeaderSize + i*slotSize
}

// readSlot, writeSlot and readKeyRecordAt restore the buffer's position
// before returning, so the key-record append cursor survives probing.
func (s *indexStore[K]) readSlot(i int64) (uint32, error) {
	saved := s.buf.Position()
	defer s.buf.SetPosition(saved)
	buf := make([]byte, slotSize)
	s.buf.SetPosition(s.slotOffset(i))
	if err := s.buf.Get(buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

func (s *indexStore[K]) writeSlot(i int64, v uint32) error {
	saved := s.buf.Position()
	defer s.buf.SetPosition(saved)
	buf := make([]byte, slotSize)
	binary.BigEndian.PutUint32(buf, v)
	s.buf.SetPosition(s.slotOffset(i))
	return s.buf.Put(buf)
}

// HashOverrideForTests, when non-nil, replaces hashKey's xxhash computation.
// It exists so tests can force probe-chain collisions deterministically;
// production code must never set it.
var HashOverrideForTests func(keyBytes []byte) int64

// hashKey computes a stable, seedless 63-bit hash so abs() is always
// well-defined and persisted routing never depends on process-local
// randomization.
func hashKey(keyBytes []byte) int64 {
	if HashOverrideForTests != nil {
		return HashOverrideForTests(keyBytes)
	}
	h := xxhash.Sum64(keyBytes)
	return int64(h & 0x7fffffffffffffff)
}

func (s *indexStore[K]) probeStart(keyBytes []byte) int64 {
	return hashKey(keyBytes) % s.capacity
}

// encodeKeyRecord lays out [keyLen uint32][keyBytes][offset int64][length int32].
func encodeKeyRecord(keyBytes []byte, offset int64, length int32) []byte {
	buf := make([]byte, 4+len(keyBytes)+8+4)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(keyBytes)))
	copy(buf[4:4+len(keyBytes)], keyBytes)
	tail := buf[4+len(keyBytes):]
	binary.BigEndian.PutUint64(tail[0:8], uint64(offset))
	binary.BigEndian.PutUint32(tail[8:12], uint32(length))
	return buf
}

func decodeKeyRecord(buf []byte) (keyBytes []byte, offset int64, length int32) {
	keyLen := binary.BigEndian.Uint32(buf[0:4])
	keyBytes = buf[4 : 4+keyLen]
	tail := buf[4+keyLen:]
	offset = int64(binary.BigEndian.Uint64(tail[0:8]))
	length = int32(binary.BigEndian.Uint32(tail[8:12]))
	return keyBytes, offset, length
}

// readKeyRecordAt reads the length-prefixed record stored at pos.
func (s *indexStore[K]) readKeyRecordAt(pos int64) (K, []byte, int64, int32, error) {
	var zero K
	saved := s.buf.Position()
	defer s.buf.SetPosition(saved)
	lenBuf := make([]byte, 4)
	s.buf.SetPosition(pos)
	if err := s.buf.Get(lenBuf); err != nil {
		return zero, nil, 0, 0, err
	}
	recordLen := binary.BigEndian.Uint32(lenBuf)

	record := make([]byte, recordLen)
	if err := s.buf.Get(record); err != nil {
		return zero, nil, 0, 0, err
	}

	keyBytes, offset, length := decodeKeyRecord(record)
	key, err := s.keyCodec.Decode(keyBytes)
	if err != nil {
		return zero, nil, 0, 0, err
	}
	return key, keyBytes, offset, length, nil
}

// get probes for k, returning its (offset, length) if present.
func (s *indexStore[K]) get(k K) (int64, int32, bool, error) {
	keyBytes, err := s.keyCodec.Encode(k)
	if err != nil {
		return 0, 0, false, err
	}

	start := s.probeStart(keyBytes)
	for i := int64(0); i <= s.capacity; i++ {
		idx := (start + i) % s.capacity
		slotVal, err := s.readSlot(idx)
		if err != nil {
			return 0, 0, false, err
		}
		if slotVal == slotEmpty {
			return 0, 0, false, nil
		}
		if slotVal == slotTombstone {
			continue
		}

		_, candidateBytes, offset, length, err := s.readKeyRecordAt(int64(slotVal))
		if err != nil {
			return 0, 0, false, err
		}
		if bytes.Equal(candidateBytes, keyBytes) {
			return offset, length, true, nil
		}
	}
	return 0, 0, false, ErrIndexFull
}

func (s *indexStore[K]) contains(k K) (bool, error) {
	_, _, found, err := s.get(k)
	return found, err
}

// growIfNeeded enlarges the table before put would push load factor over
// 50%, or before the append area is too small for the next record.
func (s *indexStore[K]) growIfNeeded(nextRecordBytes int64) error {
	if s.size > s.capacity/2 {
		newCapacity := s.capacity * 3
		newFileSize := s.buf.Capacity()
		if minNeeded := int64(capacityHeaderSize) + newCapacity*slotSize; newFileSize < minNeeded {
			newFileSize = minNeeded
		}
		if err := s.grow(newCapacity, newFileSize); err != nil {
			return err
		}
	}

	need := s.buf.Position() + nextRecordBytes
	if need > s.buf.Capacity() {
		currentFileCap := s.buf.Capacity()
		newFileSize := currentFileCap * 3
		if minNeeded := currentFileCap + nextRecordBytes; newFileSize < minNeeded {
			newFileSize = minNeeded
		}
		if err := s.grow(s.capacity, newFileSize); err != nil {
			return err
		}
	}
	return nil
}

// put inserts or updates k's (offset, length). Insertion reuses the first
// empty or tombstoned slot found while probing; a true empty slot ends the
// unsuccessful search for an existing k, exactly as in get.
func (s *indexStore[K]) put(k K, offset int64, length int32) error {
	keyBytes, err := s.keyCodec.Encode(k)
	if err != nil {
		return err
	}

	record := encodeKeyRecord(keyBytes, offset, length)
	if err := s.growIfNeeded(int64(4 + len(record))); err != nil {
		return err
	}

	writePos := s.buf.Position()
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(record)))
	if err := s.buf.Put(lenBuf); err != nil {
		return err
	}
	if err := s.buf.Put(record); err != nil {
		return err
	}

	start := s.probeStart(keyBytes)
	insertAt := int64(-1)

	for i := int64(0); i <= s.capacity; i++ {
		idx := (start + i) % s.capacity
		slotVal, err := s.readSlot(idx)
		if err != nil {
			return err
		}

		if slotVal == slotEmpty {
			if insertAt == -1 {
				insertAt = idx
			}
			break
		}
		if slotVal == slotTombstone {
			if insertAt == -1 {
				insertAt = idx
			}
			continue
		}

		_, candidateBytes, _, _, err := s.readKeyRecordAt(int64(slotVal))
		if err != nil {
			return err
		}
		if bytes.Equal(candidateBytes, keyBytes) {
			return s.writeSlot(idx, uint32(writePos))
		}
	}

	if insertAt == -1 {
		return ErrIndexFull
	}
	if err := s.writeSlot(insertAt, uint32(writePos)); err != nil {
		return err
	}
	s.size++
	return nil
}

// remove tombstones k's slot if present, leaving the probe chain intact for
// keys inserted before the removal.
func (s *indexStore[K]) remove(k K) (bool, error) {
	keyBytes, err := s.keyCodec.Encode(k)
	if err != nil {
		return false, err
	}

	start := s.probeStart(keyBytes)
	for i := int64(0); i <= s.capacity; i++ {
		idx := (start + i) % s.capacity
		slotVal, err := s.readSlot(idx)
		if err != nil {
			return false, err
		}
		if slotVal == slotEmpty {
			return false, nil
		}
		if slotVal == slotTombstone {
			continue
		}

		_, candidateBytes, _, _, err := s.readKeyRecordAt(int64(slotVal))
		if err != nil {
			return false, err
		}
		if bytes.Equal(candidateBytes, keyBytes) {
			if err := s.writeSlot(idx, slotTombstone); err != nil {
				return false, err
			}
			s.size--
			return true, nil
		}
	}
	return false, nil
}

// liveEntries walks the slot array in order and decodes every live record.
func (s *indexStore[K]) liveEntries() ([]indexEntry[K], error) {
	out := make([]indexEntry[K], 0, s.size)
	for i := int64(0); i < s.capacity; i++ {
		slotVal, err := s.readSlot(i)
		if err != nil {
			return nil, err
		}
		if slotVal == slotEmpty || slotVal == slotTombstone {
			continue
		}
		key, _, offset, length, err := s.readKeyRecordAt(int64(slotVal))
		if err != nil {
			return nil, err
		}
		out = append(out, indexEntry[K]{Key: key, Offset: offset, Length: length})
	}
	return out, nil
}

// clear resets the table to its initial capacity and drops every entry.
// The backing file is not shrunk.
func (s *indexStore[K]) clear() error {
	s.capacity = s.initialCapacity
	s.size = 0
	return s.initialize()
}

// grow rebuilds the index at newCapacity slots and newFileSize bytes,
// preserving every live entry, via the copy-twice procedure: the live set
// is first copied into an ephemeral temp store (so the table can be resized
// without two simultaneous mappings of the same file), then the temp
// store's entries are copied into a fresh store built over this store's own
// filename.
func (s *indexStore[K]) grow(newCapacity, newFileSize int64) error {
	entries, err := s.liveEntries()
	if err != nil {
		return err
	}
	return s.rebuild(newCapacity, newFileSize, entries)
}

// compact rewrites the index to the minimal capacity/size that holds
// exactly its live entries.
func (s *indexStore[K]) compact() error {
	entries, err := s.liveEntries()
	if err != nil {
		return err
	}
	return s.compactWithEntries(entries)
}

// compactWithEntries rebuilds the index to fit entries exactly, replacing
// whatever live set it currently holds. The map engine uses this after
// relocating value blobs during its own compact, passing entries whose
// offsets already point at the freshly compacted data file.
func (s *indexStore[K]) compactWithEntries(entries []indexEntry[K]) error {
	capacity := s.initialCapacity
	for int64(len(entries)) > capacity/2 {
		capacity *= 3
	}

	fileSize := int64(capacityHeaderSize) + capacity*slotSize
	for _, e := range entries {
		keyBytes, err := s.keyCodec.Encode(e.Key)
		if err != nil {
			return err
		}
		fileSize += int64(4 + len(encodeKeyRecord(keyBytes, e.Offset, e.Length)))
	}
	if fileSize < minMappedSize {
		fileSize = minMappedSize
	}

	return s.rebuild(capacity, fileSize, entries)
}

// rebuild performs the copy-twice swap described on grow/compactWithEntries:
// temp store first, then a fresh store over this store's own filename,
// finally installed in place of the current mapping.
func (s *indexStore[K]) rebuild(newCapacity, newFileSize int64, entries []indexEntry[K]) error {
	filename := s.buf.Filename()
	persistent := s.persistent

	tempFile, err := os.CreateTemp("", "hedgehog-idx-grow-*.hdg")
	if err != nil {
		return wrapIO(err, "create-temp", "index grow")
	}
	tempPath := tempFile.Name()
	tempFile.Close()
	os.Remove(tempPath)

	temp, err := newIndexStore[K](tempPath, s.keyCodec, newCapacity, newFileSize, false)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := temp.put(e.Key, e.Offset, e.Length); err != nil {
			temp.buf.Close()
			return err
		}
	}

	finalEntries, err := temp.liveEntries()
	if err != nil {
		temp.buf.Close()
		return err
	}

	if err := s.buf.unmapOnly(); err != nil {
		temp.buf.Close()
		return err
	}
	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		temp.buf.Close()
		return wrapIO(err, "delete", filename)
	}

	target, err := newIndexStore[K](filename, s.keyCodec, newCapacity, newFileSize, persistent)
	if err != nil {
		temp.buf.Close()
		return err
	}
	for _, e := range finalEntries {
		if err := target.put(e.Key, e.Offset, e.Length); err != nil {
			temp.buf.Close()
			return err
		}
	}

	if err := temp.buf.Close(); err != nil {
		return err
	}

	s.buf = target.buf
	s.capacity = target.capacity
	s.size = target.size
	return nil
}

// force flushes the index file to disk.
func (s *indexStore[K]) force() error {
	return s.buf.Force()
}

// close releases the index store's mapping.
func (s *indexStore[K]) close() error {
	return s.buf.Close()
}
