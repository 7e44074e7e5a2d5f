// Package softgpu is a host-memory device for gpudict.
//
// It implements gpudict.Device, gpudict.Buffer, gpudict.Material and
// gpudict.ComputeShader with plain byte slices, and Lookup runs the device
// lookup kernel against whatever a dictionary bound. Tests use it to check
// binding contents and leaks; hosts without a GPU can use it as a fallback.
package softgpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tamirms/gpudict"
	gderrors "github.com/tamirms/gpudict/errors"
)

// Device allocates host-memory buffers and tracks how many are live.
type Device struct {
	live      atomic.Int64
	allocated atomic.Int64 // bytes held by live buffers

	// limit caps allocated bytes; 0 means unlimited.
	limit int64
}

var _ gpudict.Device = (*Device)(nil)

// NewDevice returns a device without an allocation limit.
func NewDevice() *Device {
	return &Device{}
}

// NewDeviceWithLimit returns a device whose NewBuffer fails once live
// buffers would exceed limit bytes in total.
func NewDeviceWithLimit(limit int64) *Device {
	return &Device{limit: limit}
}

// NewBuffer allocates a zeroed buffer of count elements of stride bytes.
func (d *Device) NewBuffer(count, stride int) (gpudict.Buffer, error) {
	if count < 0 || stride <= 0 {
		return nil, fmt.Errorf("softgpu: invalid buffer shape %d×%d", count, stride)
	}
	size := int64(count) * int64(stride)
	if total := d.allocated.Add(size); d.limit > 0 && total > d.limit {
		d.allocated.Add(-size)
		return nil, fmt.Errorf("softgpu: out of memory allocating %d bytes (limit %d)", size, d.limit)
	}
	d.live.Add(1)
	return &Buffer{
		dev:    d,
		data:   make([]byte, size),
		count:  count,
		stride: stride,
	}, nil
}

// Live returns the number of buffers that have not been released.
func (d *Device) Live() int {
	return int(d.live.Load())
}

// Allocated returns the bytes held by live buffers.
func (d *Device) Allocated() int64 {
	return d.allocated.Load()
}

// Buffer is a device buffer backed by a byte slice.
type Buffer struct {
	dev    *Device
	mu     sync.RWMutex
	data   []byte
	count  int
	stride int

	released bool
}

var _ gpudict.Buffer = (*Buffer)(nil)

// SetData replaces the buffer contents. len(data) must equal Count*Stride.
func (b *Buffer) SetData(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return gderrors.ErrReleased
	}
	if len(data) != len(b.data) {
		return fmt.Errorf("%w: got %d bytes, buffer holds %d", gderrors.ErrBufferSize, len(data), len(b.data))
	}
	copy(b.data, data)
	return nil
}

// Release frees the buffer. Repeated calls are no-ops.
func (b *Buffer) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil
	}
	b.released = true
	b.dev.live.Add(-1)
	b.dev.allocated.Add(-int64(len(b.data)))
	b.data = nil
	return nil
}

// Bytes returns the buffer contents, or nil once released.
// The slice is shared with the buffer and must not be modified.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data
}

// Count returns the number of elements the buffer was allocated with.
func (b *Buffer) Count() int { return b.count }

// Stride returns the element size in bytes.
func (b *Buffer) Stride() int { return b.stride }

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.released
}
