package hedgehog

import (
	"bytes"
	"encoding/gob"
)

// Codec converts between a caller type T and the opaque byte blobs Hedgehog
// stores. It is the external collaborator named in the engine's design: the
// map never inspects the bytes a Codec produces, it only appends them to a
// data buffer and records their offset and length in an index store.
//
// Implementations must round-trip: Decode(Encode(v)) must equal v for every
// v a caller stores. Encode/Decode errors are treated as SerializationFailure
// and surfaced to the caller unmodified.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// GobCodec is Hedgehog's default Codec, built on encoding/gob. It fits any
// T that gob can encode (exported fields, no channels/funcs) and requires no
// registration for concrete, non-interface T. Callers with a tighter format
// (protobuf, JSON, a hand-rolled binary layout) should supply their own
// Codec instead.
type GobCodec[T any] struct{}

func (GobCodec[T]) Encode(v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, wrapCodec(err, "encode")
	}
	return buf.Bytes(), nil
}

func (GobCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, wrapCodec(err, "decode")
	}
	return v, nil
}

// BytesCodec is the identity Codec for []byte values and keys: it performs
// no serialization at all, matching the "keys and values are variable-length
// opaque byte blobs" framing of the storage engine's core data model when a
// caller already works in raw bytes.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }
func (BytesCodec) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
