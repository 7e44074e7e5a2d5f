package softgpu

import (
	"errors"
	"fmt"

	"github.com/tamirms/gpudict"
	gderrors "github.com/tamirms/gpudict/errors"
	"github.com/tamirms/gpudict/internal/encoding"
	"github.com/tamirms/gpudict/internal/slot"
)

// ErrUnbound is returned by Lookup when a table resource is missing or was
// bound from another device.
var ErrUnbound = errors.New("softgpu: table resource not bound")

// Lookup runs the lookup kernel for key against the table bound as name.
//
// It reads nothing but the four bound resources: the index and value
// buffers, the table size and the value byte size. The returned slice is a
// copy of the value record. A record that points outside the value buffer
// is reported as ErrCorruptedTable rather than read out of bounds.
func Lookup(r Resources, name string, key int32) ([]byte, bool, error) {
	names := gpudict.BindingNames(name)

	index, err := boundBuffer(r, names.IndexDataBuffer)
	if err != nil {
		return nil, false, err
	}
	values, err := boundBuffer(r, names.ValueMap)
	if err != nil {
		return nil, false, err
	}
	tableSize, ok := r.Int(names.TableSize)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnbound, names.TableSize)
	}
	valueSize, ok := r.Int(names.CustomElementByteSize)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnbound, names.CustomElementByteSize)
	}

	idx := index.Bytes()
	entries := values.Bytes()
	if idx == nil || entries == nil {
		return nil, false, gderrors.ErrReleased
	}
	if tableSize <= 0 || len(idx) < int(tableSize)*4 {
		return nil, false, fmt.Errorf("%w: table size %d with %d index bytes", gderrors.ErrCorruptedTable, tableSize, len(idx))
	}
	stride := encoding.Stride(int(valueSize))
	if valueSize <= 0 || values.Stride() != stride {
		return nil, false, fmt.Errorf("%w: value size %d, buffer stride %d", gderrors.ErrCorruptedTable, valueSize, values.Stride())
	}

	rec := encoding.Index(idx, int(slot.Hash(key, uint32(tableSize))))
	if rec == slot.Empty {
		return nil, false, nil
	}
	start, length := slot.Unpack(rec)
	if int(start)+int(length) > values.Count() {
		return nil, false, fmt.Errorf("%w: bucket range [%d, %d+%d) beyond %d entries", gderrors.ErrCorruptedTable, start, start, length, values.Count())
	}
	pos, ok := encoding.FindKey(entries, stride, int(start), int(length), key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), encoding.Value(entries, pos, stride)...), true, nil
}

// LookupValue is Lookup followed by codec.Decode.
func LookupValue[T any](r Resources, name string, key int32, codec gpudict.Codec[T]) (T, bool, error) {
	var zero T
	raw, ok, err := Lookup(r, name, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	if len(raw) != codec.Size() {
		return zero, false, fmt.Errorf("%w: bound value size %d, codec %d", gderrors.ErrValueSizeMismatch, len(raw), codec.Size())
	}
	return codec.Decode(raw), true, nil
}

func boundBuffer(r Resources, name string) (*Buffer, error) {
	b, ok := r.Buffer(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnbound, name)
	}
	sb, ok := b.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %T", ErrUnbound, name, b)
	}
	return sb, nil
}
