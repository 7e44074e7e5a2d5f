package gpudict

// Binding name suffixes. The device-side program declares its resources as
// <name><suffix>, so these strings are part of the wire contract.
const (
	ValueMapSuffix              = "_valueMap"
	IndexDataBufferSuffix       = "_indexDataBuffer"
	TableSizeSuffix             = "_tableSize"
	CustomElementByteSizeSuffix = "_customElementByteSize"
)

// Buffer is a device-visible buffer owned by the host runtime.
type Buffer interface {
	// SetData uploads data. len(data) equals count*stride of the allocation.
	SetData(data []byte) error

	// Release frees the buffer. Implementations must tolerate repeated calls.
	Release() error
}

// Device allocates device-visible buffers.
type Device interface {
	// NewBuffer allocates a buffer of count elements of stride bytes each.
	// count may be zero for an empty table.
	NewBuffer(count, stride int) (Buffer, error)
}

// Material receives named resources for a graphics program.
type Material interface {
	SetBuffer(name string, buf Buffer)
	SetInt(name string, value int32)
}

// ComputeShader receives named resources for one kernel of a compute program.
// Integer parameters are program-wide.
type ComputeShader interface {
	SetBuffer(kernel int, name string, buf Buffer)
	SetInt(name string, value int32)
}

// Bindings holds the four resource identifiers of a named table.
type Bindings struct {
	ValueMap              string
	IndexDataBuffer       string
	TableSize             string
	CustomElementByteSize string
}

// BindingNames returns the resource identifiers for a table called name.
func BindingNames(name string) Bindings {
	return Bindings{
		ValueMap:              name + ValueMapSuffix,
		IndexDataBuffer:       name + IndexDataBufferSuffix,
		TableSize:             name + TableSizeSuffix,
		CustomElementByteSize: name + CustomElementByteSizeSuffix,
	}
}
