package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in process memory. It backs tests and dry runs, and
// can inject per-name failures and count accesses.
type MemoryStore struct {
	mu       sync.RWMutex
	blobs    map[string][]byte
	dirs     map[string]struct{}
	faults   map[string]error
	counters map[string]*accessCount
}

type accessCount struct {
	opens, writes int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:    map[string][]byte{},
		dirs:     map[string]struct{}{},
		faults:   map[string]error{},
		counters: map[string]*accessCount{},
	}
}

// FailOn makes Open, Create and Put of name fail with err until it is
// cleared with a nil err.
func (m *MemoryStore) FailOn(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.faults[name] = err
	} else {
		delete(m.faults, name)
	}
}

// Opens returns the number of Open calls for name.
func (m *MemoryStore) Opens(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.counters[name]; c != nil {
		return c.opens
	}
	return 0
}

// Writes returns the number of completed writes of name.
func (m *MemoryStore) Writes(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.counters[name]; c != nil {
		return c.writes
	}
	return 0
}

func (m *MemoryStore) count(name string) *accessCount {
	c := m.counters[name]
	if c == nil {
		c = &accessCount{}
		m.counters[name] = c
	}
	return c
}

func (m *MemoryStore) fault(name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.faults[name]
}

// Open returns a snapshot of name. Names ending in "/" address directories,
// which exist once created by MkdirAll or implied by a blob below them.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.faults[name]; err != nil {
		return nil, err
	}
	m.count(name).opens++

	if strings.HasSuffix(name, "/") {
		if !m.dirExistsLocked(name) {
			return nil, ErrNotFound
		}
		return bytesBlob(nil), nil
	}
	data, ok := m.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return bytesBlob(slices.Clone(data)), nil
}

func (m *MemoryStore) dirExistsLocked(dir string) bool {
	for d := range m.dirs {
		if strings.HasPrefix(d, dir) {
			return true
		}
	}
	for name := range m.blobs {
		if strings.HasPrefix(name, dir) {
			return true
		}
	}
	return false
}

// Create starts a buffered write that is published by Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	if err := m.fault(name); err != nil {
		return nil, err
	}
	return &memoryWriter{store: m, name: name}, nil
}

// Put replaces name with a copy of data.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.faults[name]; err != nil {
		return err
	}
	m.storeLocked(name, data)
	return nil
}

func (m *MemoryStore) storeLocked(name string, data []byte) {
	b := make([]byte, len(data))
	copy(b, data)
	m.blobs[name] = b
	m.count(name).writes++
}

// Delete removes name. Missing names are ignored.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	delete(m.dirs, name)
	m.mu.Unlock()
	return nil
}

// MkdirAll records name as a directory.
func (m *MemoryStore) MkdirAll(_ context.Context, name string) error {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	m.mu.Lock()
	m.dirs[name] = struct{}{}
	m.mu.Unlock()
	return nil
}

// List returns the sorted blob names starting with prefix. Directories
// recorded by MkdirAll are not listed.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	slices.Sort(names)
	return names, nil
}

// bytesBlob is a Blob over an immutable byte slice.
type bytesBlob []byte

func (b bytesBlob) Size() int64 { return int64(len(b)) }

func (b bytesBlob) Close() error { return nil }

func (b bytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("blobstore: negative offset")
	}
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b bytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	off = min(max(off, 0), int64(len(b)))
	end := min(off+max(length, 0), int64(len(b)))
	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

type memoryWriter struct {
	store   *MemoryStore
	name    string
	buf     bytes.Buffer
	aborted bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.aborted {
		return 0, errors.New("blobstore: write after abort")
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Sync() error { return nil }

// Close publishes the buffered content unless the write was aborted.
func (w *memoryWriter) Close() error {
	if w.aborted {
		return nil
	}
	w.store.mu.Lock()
	w.store.storeLocked(w.name, w.buf.Bytes())
	w.store.mu.Unlock()
	return nil
}

func (w *memoryWriter) Abort() error {
	w.aborted = true
	w.buf.Reset()
	return nil
}
