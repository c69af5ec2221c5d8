/*
Package hedgehog provides an embeddable, disk-backed key-value map built on
memory-mapped files.

Map[K, V] shards its keys across N independent (index store, data buffer)
pairs, each a memory-mapped file, so concurrent callers touching different
keys rarely contend. Keys and values are any Go type a Codec can serialize;
the built-in GobCodec and BytesCodec cover the common cases.

Basic usage:

	import "github.com/aluketa/hedgehog"

	m, err := hedgehog.NewMap[string, string](hedgehog.Options{
		DataPath:          "/var/lib/myapp",
		Name:              "sessions",
		Persistent:        true,
		ConcurrencyFactor: 16,
	}, hedgehog.GobCodec[string]{}, hedgehog.GobCodec[string]{})
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	_, _, err = m.Put("session-1", "alice")
	value, found, err := m.Get("session-1")

Features:

  - Memory-mapped storage spanning files larger than a single mmap region
  - Sharded concurrency: one mutex per shard, global operations lock every
    shard in a fixed order to avoid deadlock
  - Open-addressed index with tombstoned removal, grown automatically past
    a 50% load factor
  - Compact to reclaim space orphaned by overwrites and removals
  - Pluggable serialization via the Codec interface

Implementation Details:

Each shard's index file holds a 4-byte capacity header, a capacity-sized
slot array, and an append-only log of length-prefixed key records; each
shard's data file is an append-only log of length-prefixed (by the index,
not the file itself) value blobs. Growing the index file, or compacting
either file, copies its live content into an ephemeral file first, then
into a fresh mapping over the original filename, because a single mapping
cannot be resized in place while callers may still be reading through it.
Growing a persistent data file unmaps it and maps the same file again at
the larger size; growing an ephemeral data file copies its live values into
a new, larger temporary file.
*/
package hedgehog
