package hedgehog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options configures a Map's construction. DataPath and Name are ignored
// when Persistent is false, in which case every shard's files are unique
// temporary files deleted on Close.
type Options struct {
	// DataPath is the directory hosting persistent files.
	DataPath string
	// Name is the base filename component for persistent files.
	Name string
	// Persistent selects deterministic, surviving files over temp files
	// deleted on Close.
	Persistent bool
	// ConcurrencyFactor is the number of shards; values below 1 are
	// treated as 1.
	ConcurrencyFactor int
	// InitialFileSize is a lower bound on the initial mapped size of
	// each shard's data and index buffers.
	InitialFileSize int64
	// MaxRegionSize overrides the segmented buffer's per-region cap;
	// zero selects the platform default.
	MaxRegionSize int64
	// InitialCapacity is a floor on each shard's index slot count;
	// zero selects the default of 1024.
	InitialCapacity int
	// Logger receives the map's lifecycle events (shard opened, cleared,
	// compacted). A nil Logger falls back to logrus's standard logger.
	// Index-store restores are always logged through logrus's standard
	// logger, and grows are not logged.
	Logger *log.Logger
}

// Entry is one (key, value) pair surfaced by Map.Entries.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// shard owns one data file, one index file, and the lock that serializes
// every operation routed to it.
type shard[K, V any] struct {
	mu         sync.Mutex
	index      *indexStore[K]
	data       *segmentedBuffer
	valueCodec Codec[V]
}

// Map is Hedgehog's public, sharded, disk-backed key-value store. Keys and
// values are any Go type with a Codec; N independent shards, each an
// (index store, data buffer) pair behind its own mutex, absorb concurrent
// callers while single-key operations touch only the shard a key hashes to.
type Map[K, V any] struct {
	opts       Options
	shards     []*shard[K, V]
	keyCodec   Codec[K]
	valueCodec Codec[V]
	logger     *log.Logger
}

func shardSuffix(k int) string {
	if k == 0 {
		return ""
	}
	return fmt.Sprintf("-%d", k)
}

func shardFilenames(opts Options, k int) (dataPath, idxPath string, err error) {
	if opts.Persistent {
		suffix := shardSuffix(k)
		dataPath = filepath.Join(opts.DataPath, fmt.Sprintf("map-%s%s.hdg", opts.Name, suffix))
		idxPath = filepath.Join(opts.DataPath, fmt.Sprintf("idx-%s%s.hdg", opts.Name, suffix))
		return dataPath, idxPath, nil
	}

	dataPath, err = createTempFile(fmt.Sprintf("hedgehog-map-%d-*.hdg", k))
	if err != nil {
		return "", "", err
	}
	idxPath, err = createTempFile(fmt.Sprintf("hedgehog-idx-%d-*.hdg", k))
	if err != nil {
		return "", "", err
	}
	return dataPath, idxPath, nil
}

func createTempFile(pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", wrapIO(err, "create-temp", pattern)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", wrapIO(err, "close-temp", name)
	}
	return name, nil
}

func newShard[K, V any](dataPath, idxPath string, keyCodec Codec[K], valueCodec Codec[V], initialFileSize, maxRegionSize, initialCapacity int64, persistent bool) (*shard[K, V], error) {
	idx, err := newIndexStore[K](idxPath, keyCodec, initialCapacity, initialFileSize, persistent)
	if err != nil {
		return nil, err
	}

	data, err := newSegmentedBuffer(dataPath, initialFileSize, persistent, maxRegionSize)
	if err != nil {
		idx.close()
		return nil, err
	}

	sh := &shard[K, V]{index: idx, data: data, valueCodec: valueCodec}

	if idx.size > 0 {
		entries, err := idx.liveEntries()
		if err != nil {
			return nil, err
		}
		maxOffset := int64(-1)
		var lengthAtMax int32
		for _, e := range entries {
			if e.Offset > maxOffset {
				maxOffset = e.Offset
				lengthAtMax = e.Length
			}
		}
		if maxOffset >= 0 {
			data.SetPosition(maxOffset + int64(lengthAtMax))
		}
	}

	return sh, nil
}

// NewMap opens or creates a sharded map per opts.
func NewMap[K, V any](opts Options, keyCodec Codec[K], valueCodec Codec[V]) (*Map[K, V], error) {
	n := opts.ConcurrencyFactor
	if n < 1 {
		n = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	if opts.Persistent {
		if err := os.MkdirAll(opts.DataPath, 0755); err != nil {
			return nil, wrapIO(err, "mkdir", opts.DataPath)
		}
	}

	shards := make([]*shard[K, V], n)
	for k := 0; k < n; k++ {
		dataPath, idxPath, err := shardFilenames(opts, k)
		if err != nil {
			return nil, err
		}

		sh, err := newShard[K, V](dataPath, idxPath, keyCodec, valueCodec, opts.InitialFileSize, opts.MaxRegionSize, int64(opts.InitialCapacity), opts.Persistent)
		if err != nil {
			return nil, err
		}
		shards[k] = sh

		logger.WithFields(log.Fields{"shard": k, "entries": sh.index.size}).Debug("hedgehog: shard opened")
	}

	return &Map[K, V]{opts: opts, shards: shards, keyCodec: keyCodec, valueCodec: valueCodec, logger: logger}, nil
}

// ComparableMap wraps Map for value types with native Go equality, offering
// ContainsValue/ReplaceIf/RemoveIf variants that don't need an eq callback.
type ComparableMap[K any, V comparable] struct {
	*Map[K, V]
}

// NewComparableMap opens or creates a sharded map whose value type supports ==.
func NewComparableMap[K any, V comparable](opts Options, keyCodec Codec[K], valueCodec Codec[V]) (*ComparableMap[K, V], error) {
	m, err := NewMap[K, V](opts, keyCodec, valueCodec)
	if err != nil {
		return nil, err
	}
	return &ComparableMap[K, V]{m}, nil
}

func (m *ComparableMap[K, V]) ContainsValue(value V) (bool, error) {
	return m.Map.ContainsValue(value, func(a, b V) bool { return a == b })
}

func (m *ComparableMap[K, V]) ReplaceIf(key K, old, new V) (bool, error) {
	return m.Map.ReplaceIf(key, old, new, func(a, b V) bool { return a == b })
}

func (m *ComparableMap[K, V]) RemoveIf(key K, value V) (bool, error) {
	return m.Map.RemoveIf(key, value, func(a, b V) bool { return a == b })
}

func (m *Map[K, V]) shardFor(keyBytes []byte) *shard[K, V] {
	idx := hashKey(keyBytes) % int64(len(m.shards))
	return m.shards[idx]
}

func (m *Map[K, V]) lockAll() {
	for i := range m.shards {
		m.shards[i].mu.Lock()
	}
}

func (m *Map[K, V]) unlockAll() {
	for i := len(m.shards) - 1; i >= 0; i-- {
		m.shards[i].mu.Unlock()
	}
}

// readValueAt reads a value at a known (offset, length) without disturbing
// the shard's append cursor.
func (sh *shard[K, V]) readValueAt(offset int64, length int32) ([]byte, error) {
	saved := sh.data.Position()
	sh.data.SetPosition(offset)
	buf := make([]byte, length)
	err := sh.data.Get(buf)
	sh.data.SetPosition(saved)
	return buf, err
}

func (sh *shard[K, V]) getLocked(key K) (V, bool, error) {
	var zero V
	offset, length, found, err := sh.index.get(key)
	if err != nil || !found {
		return zero, false, err
	}

	raw, err := sh.readValueAt(offset, length)
	if err != nil {
		return zero, false, err
	}
	val, err := sh.valueCodec.Decode(raw)
	if err != nil {
		return zero, false, err
	}
	return val, true, nil
}

// growData enlarges a shard's data buffer to at least newSize, preserving
// the append cursor and every live value.
func (sh *shard[K, V]) growData(newSize int64) error {
	writePos := sh.data.Position()
	oldFilename := sh.data.Filename()
	persistent := sh.data.persistent
	maxRegion := sh.data.maxRegionSize

	if persistent {
		if err := sh.data.unmapOnly(); err != nil {
			return err
		}
		newBuf, err := newSegmentedBuffer(oldFilename, newSize, true, maxRegion)
		if err != nil {
			return err
		}
		newBuf.SetPosition(writePos)
		sh.data = newBuf
		return nil
	}

	entries, err := sh.index.liveEntries()
	if err != nil {
		return err
	}

	tempPath, err := createTempFile("hedgehog-map-grow-*.hdg")
	if err != nil {
		return err
	}
	newBuf, err := newSegmentedBuffer(tempPath, newSize, false, maxRegion)
	if err != nil {
		return err
	}
	for _, e := range entries {
		buf, err := sh.readValueAt(e.Offset, e.Length)
		if err != nil {
			newBuf.Close()
			return err
		}
		newBuf.SetPosition(e.Offset)
		if err := newBuf.Put(buf); err != nil {
			newBuf.Close()
			return err
		}
	}
	newBuf.SetPosition(writePos)

	if err := sh.data.Close(); err != nil {
		return err
	}
	sh.data = newBuf
	return nil
}

// Put inserts or updates key's value, returning the value it replaced (if
// any). Routing, growth, and the append-then-index write happen under the
// owning shard's lock only.
func (m *Map[K, V]) Put(key K, value V) (V, bool, error) {
	var zero V
	keyBytes, err := m.keyCodec.Encode(key)
	if err != nil {
		return zero, false, err
	}
	valBytes, err := m.valueCodec.Encode(value)
	if err != nil {
		return zero, false, err
	}

	sh := m.shardFor(keyBytes)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	previous, had, err := sh.getLocked(key)
	if err != nil {
		return zero, false, err
	}

	if sh.data.Position()+int64(len(valBytes)) > sh.data.Capacity() {
		newSize := sh.data.Capacity() + int64(len(valBytes))
		if doubled := sh.data.Capacity() * 2; doubled > newSize {
			newSize = doubled
		}
		if err := sh.growData(newSize); err != nil {
			return zero, false, err
		}
	}

	writePos := sh.data.Position()
	if err := sh.data.Put(valBytes); err != nil {
		return zero, false, err
	}
	if err := sh.index.put(key, writePos, int32(len(valBytes))); err != nil {
		return zero, false, err
	}

	return previous, had, nil
}

// Get returns key's value and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool, error) {
	var zero V
	keyBytes, err := m.keyCodec.Encode(key)
	if err != nil {
		return zero, false, err
	}

	sh := m.shardFor(keyBytes)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.getLocked(key)
}

// Remove deletes key, returning the value it held and whether it was present.
func (m *Map[K, V]) Remove(key K) (V, bool, error) {
	var zero V
	keyBytes, err := m.keyCodec.Encode(key)
	if err != nil {
		return zero, false, err
	}

	sh := m.shardFor(keyBytes)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	previous, had, err := sh.getLocked(key)
	if err != nil || !had {
		return previous, had, err
	}
	if _, err := sh.index.remove(key); err != nil {
		return previous, had, err
	}
	return previous, had, nil
}

// ContainsKey reports whether key is present.
func (m *Map[K, V]) ContainsKey(key K) (bool, error) {
	keyBytes, err := m.keyCodec.Encode(key)
	if err != nil {
		return false, err
	}

	sh := m.shardFor(keyBytes)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.index.contains(key)
}

// PutIfAbsent inserts value only if key is not already present, returning
// the value now stored under key (the pre-existing one, or value itself).
func (m *Map[K, V]) PutIfAbsent(key K, value V) (V, error) {
	keyBytes, err := m.keyCodec.Encode(key)
	if err != nil {
		return value, err
	}

	sh := m.shardFor(keyBytes)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, had, err := sh.getLocked(key)
	if err != nil {
		return value, err
	}
	if had {
		return current, nil
	}

	if err := m.putLocked(sh, key, value); err != nil {
		return value, err
	}
	return value, nil
}

// Replace sets key's value only if key is already present, returning the
// value it replaced.
func (m *Map[K, V]) Replace(key K, value V) (V, bool, error) {
	var zero V
	keyBytes, err := m.keyCodec.Encode(key)
	if err != nil {
		return zero, false, err
	}

	sh := m.shardFor(keyBytes)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	previous, had, err := sh.getLocked(key)
	if err != nil || !had {
		return zero, false, err
	}
	if err := m.putLocked(sh, key, value); err != nil {
		return zero, false, err
	}
	return previous, true, nil
}

// ReplaceIf sets key's value to new only if key's current value equals old
// under eq.
func (m *Map[K, V]) ReplaceIf(key K, old, new V, eq func(a, b V) bool) (bool, error) {
	keyBytes, err := m.keyCodec.Encode(key)
	if err != nil {
		return false, err
	}

	sh := m.shardFor(keyBytes)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, had, err := sh.getLocked(key)
	if err != nil || !had || !eq(current, old) {
		return false, err
	}
	if err := m.putLocked(sh, key, new); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveIf deletes key only if its current value equals value under eq.
func (m *Map[K, V]) RemoveIf(key K, value V, eq func(a, b V) bool) (bool, error) {
	keyBytes, err := m.keyCodec.Encode(key)
	if err != nil {
		return false, err
	}

	sh := m.shardFor(keyBytes)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, had, err := sh.getLocked(key)
	if err != nil || !had || !eq(current, value) {
		return false, err
	}
	if _, err := sh.index.remove(key); err != nil {
		return false, err
	}
	return true, nil
}

// putLocked is Put's body reused by the conditional operations, which have
// already resolved the previous value under the same shard lock.
func (m *Map[K, V]) putLocked(sh *shard[K, V], key K, value V) error {
	valBytes, err := m.valueCodec.Encode(value)
	if err != nil {
		return err
	}

	if sh.data.Position()+int64(len(valBytes)) > sh.data.Capacity() {
		newSize := sh.data.Capacity() + int64(len(valBytes))
		if doubled := sh.data.Capacity() * 2; doubled > newSize {
			newSize = doubled
		}
		if err := sh.growData(newSize); err != nil {
			return err
		}
	}

	writePos := sh.data.Position()
	if err := sh.data.Put(valBytes); err != nil {
		return err
	}
	return sh.index.put(key, writePos, int32(len(valBytes)))
}

// Size returns the total live key count across every shard.
func (m *Map[K, V]) Size() (int, error) {
	m.lockAll()
	defer m.unlockAll()

	var total int64
	for _, sh := range m.shards {
		total += sh.index.size
	}
	return int(total), nil
}

// IsEmpty reports whether every shard holds zero entries.
func (m *Map[K, V]) IsEmpty() (bool, error) {
	m.lockAll()
	defer m.unlockAll()

	for _, sh := range m.shards {
		if sh.index.size != 0 {
			return false, nil
		}
	}
	return true, nil
}

// Keys returns every live key across every shard, in no particular order.
func (m *Map[K, V]) Keys() ([]K, error) {
	m.lockAll()
	defer m.unlockAll()

	var out []K
	for _, sh := range m.shards {
		entries, err := sh.index.liveEntries()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			out = append(out, e.Key)
		}
	}
	return out, nil
}

// Values returns every live value across every shard, in no particular order.
func (m *Map[K, V]) Values() ([]V, error) {
	m.lockAll()
	defer m.unlockAll()

	var out []V
	for _, sh := range m.shards {
		entries, err := sh.index.liveEntries()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			raw, err := sh.readValueAt(e.Offset, e.Length)
			if err != nil {
				return nil, err
			}
			val, err := sh.valueCodec.Decode(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
	}
	return out, nil
}

// Entries returns every live (key, value) pair across every shard, in no
// particular order.
func (m *Map[K, V]) Entries() ([]Entry[K, V], error) {
	m.lockAll()
	defer m.unlockAll()

	var out []Entry[K, V]
	for _, sh := range m.shards {
		entries, err := sh.index.liveEntries()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			raw, err := sh.readValueAt(e.Offset, e.Length)
			if err != nil {
				return nil, err
			}
			val, err := sh.valueCodec.Decode(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, Entry[K, V]{Key: e.Key, Value: val})
		}
	}
	return out, nil
}

// ContainsValue reports whether any live value equals value under eq. It
// scans Values() and returns on the first match.
func (m *Map[K, V]) ContainsValue(value V, eq func(a, b V) bool) (bool, error) {
	values, err := m.Values()
	if err != nil {
		return false, err
	}
	for _, v := range values {
		if eq(v, value) {
			return true, nil
		}
	}
	return false, nil
}

// Clear removes every entry from every shard and resets each data buffer's
// append cursor to zero. Backing files are not shrunk; use Compact for that.
func (m *Map[K, V]) Clear() error {
	m.lockAll()
	defer m.unlockAll()

	for i, sh := range m.shards {
		if err := sh.index.clear(); err != nil {
			return err
		}
		sh.data.SetPosition(0)
		m.logger.WithField("shard", i).Debug("hedgehog: shard cleared")
	}
	return nil
}

// compactShardData rewrites a shard's data file to hold exactly its live
// values and its index file to match, relocating every value blob and
// updating its index record to the blob's new offset.
func compactShardData[K, V any](sh *shard[K, V]) error {
	entries, err := sh.index.liveEntries()
	if err != nil {
		return err
	}

	var compactSize int64
	for _, e := range entries {
		compactSize += int64(e.Length)
	}
	if compactSize < minMappedSize {
		compactSize = minMappedSize
	}

	tempPath, err := createTempFile("hedgehog-map-compact-*.hdg")
	if err != nil {
		return err
	}
	tempData, err := newSegmentedBuffer(tempPath, compactSize, false, sh.data.maxRegionSize)
	if err != nil {
		return err
	}

	relocated := make([]indexEntry[K], 0, len(entries))
	for _, e := range entries {
		buf, err := sh.readValueAt(e.Offset, e.Length)
		if err != nil {
			tempData.Close()
			return err
		}
		newOffset := tempData.Position()
		if err := tempData.Put(buf); err != nil {
			tempData.Close()
			return err
		}
		relocated = append(relocated, indexEntry[K]{Key: e.Key, Offset: newOffset, Length: e.Length})
	}

	dataFilename := sh.data.Filename()
	persistent := sh.data.persistent
	maxRegion := sh.data.maxRegionSize

	if err := sh.data.unmapOnly(); err != nil {
		tempData.Close()
		return err
	}
	if err := os.Remove(dataFilename); err != nil && !os.IsNotExist(err) {
		tempData.Close()
		return wrapIO(err, "delete", dataFilename)
	}

	freshData, err := newSegmentedBuffer(dataFilename, compactSize, persistent, maxRegion)
	if err != nil {
		tempData.Close()
		return err
	}

	usedBytes := tempData.Position()
	block := make([]byte, usedBytes)
	tempData.SetPosition(0)
	if err := tempData.Get(block); err != nil {
		tempData.Close()
		return err
	}
	freshData.SetPosition(0)
	if err := freshData.Put(block); err != nil {
		tempData.Close()
		return err
	}

	if err := tempData.Close(); err != nil {
		return err
	}

	sh.data = freshData
	return sh.index.compactWithEntries(relocated)
}

// Compact rewrites every shard's data file to hold exactly its live values
// and shrinks each index file to match, reclaiming space orphaned by
// overwritten or removed entries. Shards are independent once every lock is
// held, so they compact concurrently via errgroup rather than one at a time.
func (m *Map[K, V]) Compact() error {
	m.lockAll()
	defer m.unlockAll()

	var g errgroup.Group
	for i, sh := range m.shards {
		i, sh := i, sh
		g.Go(func() error {
			if err := compactShardData[K, V](sh); err != nil {
				return err
			}
			m.logger.WithFields(log.Fields{"shard": i, "entries": sh.index.size}).Info("hedgehog: shard compacted")
			return nil
		})
	}
	return g.Wait()
}

// Force flushes every shard's data and index files to disk.
func (m *Map[K, V]) Force() error {
	m.lockAll()
	defer m.unlockAll()

	for _, sh := range m.shards {
		if err := sh.index.force(); err != nil {
			return err
		}
		if err := sh.data.Force(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every shard's mappings. For a non-persistent Map this also
// deletes its backing files.
func (m *Map[K, V]) Close() error {
	m.lockAll()
	defer m.unlockAll()

	for _, sh := range m.shards {
		if err := sh.index.close(); err != nil {
			return err
		}
		if err := sh.data.Close(); err != nil {
			return err
		}
	}
	return nil
}
