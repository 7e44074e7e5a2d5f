package softgpu

import (
	"sync"

	"github.com/tamirms/gpudict"
)

// Resources is the set of named bindings a kernel invocation can read.
type Resources interface {
	Buffer(name string) (gpudict.Buffer, bool)
	Int(name string) (int32, bool)
}

// Material records the bindings of a graphics program.
type Material struct {
	mu      sync.RWMutex
	buffers map[string]gpudict.Buffer
	ints    map[string]int32
}

var (
	_ gpudict.Material = (*Material)(nil)
	_ Resources        = (*Material)(nil)
)

// NewMaterial returns a material with no bindings.
func NewMaterial() *Material {
	return &Material{
		buffers: make(map[string]gpudict.Buffer),
		ints:    make(map[string]int32),
	}
}

// SetBuffer binds buf to name, replacing any earlier binding.
func (m *Material) SetBuffer(name string, buf gpudict.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers[name] = buf
}

// SetInt binds value to name.
func (m *Material) SetInt(name string, value int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[name] = value
}

// Buffer returns the buffer bound to name.
func (m *Material) Buffer(name string) (gpudict.Buffer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buffers[name]
	return b, ok
}

// Int returns the integer bound to name.
func (m *Material) Int(name string) (int32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.ints[name]
	return v, ok
}

// Shader records the bindings of a compute program. Buffers are bound per
// kernel; integers are shared by all kernels.
type Shader struct {
	mu      sync.RWMutex
	kernels map[int]map[string]gpudict.Buffer
	ints    map[string]int32
}

var _ gpudict.ComputeShader = (*Shader)(nil)

// NewShader returns a shader with no bindings.
func NewShader() *Shader {
	return &Shader{
		kernels: make(map[int]map[string]gpudict.Buffer),
		ints:    make(map[string]int32),
	}
}

// SetBuffer binds buf to name for kernel.
func (s *Shader) SetBuffer(kernel int, name string, buf gpudict.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.kernels[kernel]
	if k == nil {
		k = make(map[string]gpudict.Buffer)
		s.kernels[kernel] = k
	}
	k[name] = buf
}

// SetInt binds value to name for every kernel.
func (s *Shader) SetInt(name string, value int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ints[name] = value
}

// Kernel returns the resources visible to one kernel.
func (s *Shader) Kernel(kernel int) Resources {
	return kernelView{s: s, kernel: kernel}
}

type kernelView struct {
	s      *Shader
	kernel int
}

func (v kernelView) Buffer(name string) (gpudict.Buffer, bool) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	b, ok := v.s.kernels[v.kernel][name]
	return b, ok
}

func (v kernelView) Int(name string) (int32, bool) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	i, ok := v.s.ints[name]
	return i, ok
}
