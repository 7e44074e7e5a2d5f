package gpudict

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"

	gderrors "github.com/tamirms/gpudict/errors"
)

// Dictionary owns a built table's device buffers and, optionally, its host
// mirror.
//
// Usage:
//
//	dict := gpudict.NewDictionary(dev, gpudict.Fixed[Particle]())
//	defer dict.Release()
//
//	if err := dict.CreateDictionary(keys, values, len(keys), "particles"); err != nil {
//	    return err
//	}
//	if err := dict.AddToShader(shader, kernel); err != nil {
//	    return err
//	}
//
// Thread Safety:
//   - CreateDictionary, UploadTable and Release are exclusive: they wait for
//     in-flight lookups and binds and block new ones until they return
//   - TryGetValue, Get, AddToMaterial, AddToShader and the accessors may run
//     concurrently with each other
//   - bindings must be re-applied after every rebuild, since the buffers change
//
// A Dictionary that becomes unreachable without Release still frees its
// device buffers through a runtime cleanup, but when that happens is up to
// the garbage collector. Call Release (or Close) explicitly.
type Dictionary[T any] struct {
	mu     sync.RWMutex
	dev    Device
	codec  Codec[T]
	logger *slog.Logger

	name   string
	id     uuid.UUID
	stats  Stats
	mirror *Table[T] // nil unless the host mirror was retained

	res        *deviceResources
	cleanup    runtime.Cleanup
	hasCleanup bool
}

// deviceResources is split from Dictionary so the runtime cleanup can hold
// it without keeping the Dictionary reachable.
type deviceResources struct {
	index  Buffer
	values Buffer
	name   string
	logger *slog.Logger
}

// release frees both buffers. Idempotent.
func (r *deviceResources) release() error {
	var errs []error
	if r.values != nil {
		if err := r.values.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release value buffer: %w", err))
		}
		r.values = nil
	}
	if r.index != nil {
		if err := r.index.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release index buffer: %w", err))
		}
		r.index = nil
	}
	return errors.Join(errs...)
}

func releaseUnreachable(r *deviceResources) {
	r.logger.Warn("releasing dictionary that was never released", "name", r.name)
	if err := r.release(); err != nil {
		r.logger.Error("release failed", "name", r.name, "err", err)
	}
}

// NewDictionary returns an empty dictionary that allocates buffers on dev and
// encodes values with codec.
func NewDictionary[T any](dev Device, codec Codec[T], opts ...DictionaryOption) *Dictionary[T] {
	cfg := defaultDictConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Dictionary[T]{
		dev:    dev,
		codec:  codec,
		logger: cfg.logger,
	}
}

// CreateDictionary builds a table from keys and values and uploads it.
//
// Any previous table is released first, so rebuilding is always safe. The
// build preconditions of Build are checked before any device buffer is
// allocated. On failure the dictionary is left released.
//
// Pass WithHostMirror(true) to keep a CPU copy for TryGetValue.
func (d *Dictionary[T]) CreateDictionary(keys []int32, values []T, tableSize int, name string, opts ...BuildOption) error {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.releaseLocked(); err != nil {
		return fmt.Errorf("release previous table: %w", err)
	}
	if d.dev == nil {
		return gderrors.ErrNilDevice
	}

	t, err := Build(keys, values, tableSize, d.codec, opts...)
	if err != nil {
		return err
	}
	return d.uploadLocked(t, name, cfg.hostMirror)
}

// UploadTable releases any previous table and uploads t under name.
// Tables whose bucket ranges fall outside the entry array are rejected with
// ErrCorruptedTable before anything is allocated.
// With keepMirror the table also answers host lookups; a table backed by a
// mapped snapshot is copied so the dictionary outlives the snapshot.
func (d *Dictionary[T]) UploadTable(t *Table[T], name string, keepMirror bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.releaseLocked(); err != nil {
		return fmt.Errorf("release previous table: %w", err)
	}
	if d.dev == nil {
		return gderrors.ErrNilDevice
	}
	if t == nil {
		return fmt.Errorf("%w: nil table", gderrors.ErrNotBuilt)
	}
	if err := t.checkRanges(); err != nil {
		return err
	}
	if keepMirror && t.mapped {
		t = t.clone()
		t.mapped = false
	}
	return d.uploadLocked(t, name, keepMirror)
}

// uploadLocked allocates and fills both device buffers.
// Callers hold d.mu and have released any previous table.
func (d *Dictionary[T]) uploadLocked(t *Table[T], name string, keepMirror bool) error {
	indexBuf, err := d.dev.NewBuffer(t.TableSize(), 4)
	if err != nil {
		return fmt.Errorf("%w: index buffer: %w", gderrors.ErrDeviceAllocation, err)
	}
	valueBuf, err := d.dev.NewBuffer(t.Len(), t.stride)
	if err != nil {
		primaryErr := fmt.Errorf("%w: value buffer: %w", gderrors.ErrDeviceAllocation, err)
		return errors.Join(primaryErr, indexBuf.Release())
	}
	res := &deviceResources{index: indexBuf, values: valueBuf, name: name, logger: d.logger}

	if err := indexBuf.SetData(t.IndexBytes()); err != nil {
		return errors.Join(fmt.Errorf("upload index: %w", err), res.release())
	}
	if err := valueBuf.SetData(t.entries); err != nil {
		return errors.Join(fmt.Errorf("upload values: %w", err), res.release())
	}

	d.res = res
	d.cleanup = runtime.AddCleanup(d, releaseUnreachable, res)
	d.hasCleanup = true
	d.name = name
	d.id = t.id
	d.stats = t.stats
	if keepMirror {
		d.mirror = t
	}

	d.logger.Debug("dictionary uploaded",
		"name", name,
		"entries", t.stats.StoredElementCount,
		"table_size", t.stats.TableSize,
		"total_collisions", t.stats.TotalCollisions,
		"max_collisions", t.stats.MaxCollisionsInOneKey,
		"host_mirror", keepMirror)
	return nil
}

// Release frees the device buffers, drops the host mirror and resets all
// counters. It is idempotent and safe on a dictionary that was never built.
func (d *Dictionary[T]) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releaseLocked()
}

// Close is Release, for use with io.Closer.
func (d *Dictionary[T]) Close() error {
	return d.Release()
}

func (d *Dictionary[T]) releaseLocked() error {
	var err error
	if d.res != nil {
		if d.hasCleanup {
			d.cleanup.Stop()
			d.hasCleanup = false
		}
		err = d.res.release()
		d.res = nil
		d.logger.Debug("dictionary released", "name", d.name)
	}
	d.name = ""
	d.id = uuid.Nil
	d.stats = Stats{}
	d.mirror = nil
	return err
}

// TryGetValue looks key up in the host mirror.
//
// It returns ErrMirrorUnavailable when the dictionary was built without
// WithHostMirror(true); callers should look the key up on the device
// instead. An unbuilt or released dictionary has no mirror either, and its
// error matches both ErrMirrorUnavailable and ErrNotBuilt. A missing key is reported as found == false with a nil error.
func (d *Dictionary[T]) TryGetValue(key int32) (value T, found bool, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.res == nil {
		return value, false, fmt.Errorf("%w: %w", gderrors.ErrMirrorUnavailable, gderrors.ErrNotBuilt)
	}
	if d.mirror == nil {
		d.logger.Warn("host lookup without a host mirror", "name", d.name)
		return value, false, gderrors.ErrMirrorUnavailable
	}
	value, found = d.mirror.Lookup(key)
	return value, found, nil
}

// Get is TryGetValue with a miss reported as ErrKeyNotFound.
func (d *Dictionary[T]) Get(key int32) (T, error) {
	v, ok, err := d.TryGetValue(key)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %d", gderrors.ErrKeyNotFound, key)
	}
	return v, nil
}

// AddToMaterial binds the table's two buffers and two scalars to m under
// the names returned by BindingNames.
func (d *Dictionary[T]) AddToMaterial(m Material) error {
	if m == nil {
		return gderrors.ErrNullTarget
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.res == nil {
		return gderrors.ErrNotBuilt
	}
	names := BindingNames(d.name)
	m.SetBuffer(names.ValueMap, d.res.values)
	m.SetBuffer(names.IndexDataBuffer, d.res.index)
	m.SetInt(names.TableSize, int32(d.stats.TableSize))
	m.SetInt(names.CustomElementByteSize, int32(d.stats.ValueSize))
	return nil
}

// AddToShader binds the table's two buffers to kernel of s and its two
// scalars to s, under the names returned by BindingNames.
func (d *Dictionary[T]) AddToShader(s ComputeShader, kernel int) error {
	if s == nil {
		return gderrors.ErrNullTarget
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.res == nil {
		return gderrors.ErrNotBuilt
	}
	names := BindingNames(d.name)
	s.SetBuffer(kernel, names.ValueMap, d.res.values)
	s.SetBuffer(kernel, names.IndexDataBuffer, d.res.index)
	s.SetInt(names.TableSize, int32(d.stats.TableSize))
	s.SetInt(names.CustomElementByteSize, int32(d.stats.ValueSize))
	return nil
}

// Built reports whether the dictionary currently holds a table.
func (d *Dictionary[T]) Built() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.res != nil
}

// Name returns the binding name of the current table.
func (d *Dictionary[T]) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// BuildID returns the ID of the current table, or uuid.Nil when released.
// It changes on every rebuild, which invalidates earlier bindings.
func (d *Dictionary[T]) BuildID() uuid.UUID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// Stats returns the statistics of the current table.
func (d *Dictionary[T]) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// StoredElementCount returns the number of stored entries.
func (d *Dictionary[T]) StoredElementCount() int { return d.Stats().StoredElementCount }

// TableSize returns the number of buckets.
func (d *Dictionary[T]) TableSize() int { return d.Stats().TableSize }

// TotalCollisions returns the number of entries beyond the first in each bucket.
func (d *Dictionary[T]) TotalCollisions() int { return d.Stats().TotalCollisions }

// MaxCollisionsInOneKey returns the longest bucket length minus one.
func (d *Dictionary[T]) MaxCollisionsInOneKey() int { return d.Stats().MaxCollisionsInOneKey }

// StoreCPUCopy reports whether a host mirror is retained.
func (d *Dictionary[T]) StoreCPUCopy() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mirror != nil
}

// HostMirror returns the retained host mirror, or nil.
func (d *Dictionary[T]) HostMirror() *Table[T] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mirror
}
