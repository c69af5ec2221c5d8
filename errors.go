package hedgehog

import "github.com/pkg/errors"

// ErrIndexFull is returned when an index store probe exhausts every slot
// without finding a free one. The 50% load-factor grow rule should make
// this unreachable; seeing it indicates a correctness bug, not a capacity
// problem a caller can work around.
var ErrIndexFull = errors.New("hedgehog: unable to locate a free index entry")

// ErrPositionOutOfRange is returned when a segmented buffer Put or Get
// would run past the buffer's capacity. SetPosition itself does not check.
// Callers must grow the buffer first; Hedgehog never grows implicitly
// inside the buffer layer.
var ErrPositionOutOfRange = errors.New("hedgehog: position beyond buffer capacity")

// wrapIO annotates an I/O failure (open, map, truncate, flush, delete) with
// the operation and file it happened against, preserving the original
// error for errors.Cause/errors.Is.
func wrapIO(err error, op, path string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "hedgehog: %s %s", op, path)
}

// wrapCodec annotates a Codec encode/decode failure.
func wrapCodec(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "hedgehog: codec %s", op)
}
