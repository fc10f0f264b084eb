package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the error returned by injected faults without an explicit Err.
var ErrInjected = errors.New("fs: injected fault")

// Fault selects which calls fail for files matching a rule.
type Fault struct {
	// FailAfterBytes fails the write that would take the file past this many
	// bytes. Negative disables the limit.
	FailAfterBytes int64
	FailOnSync     bool
	FailOnClose    bool
	// FailOnRename fails renames whose destination matches the rule.
	FailOnRename bool
	FailOnRemove bool
	// Err overrides ErrInjected.
	Err error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

var noFault = Fault{FailAfterBytes: -1}

type rule struct {
	pattern string
	fault   Fault
}

// FaultyFS wraps a FileSystem and injects failures into calls whose path
// contains a configured pattern. When several patterns match, the longest wins.
type FaultyFS struct {
	inner FileSystem

	mu       sync.Mutex
	rules    []rule
	renames  int
	injected int
}

var _ FileSystem = (*FaultyFS)(nil)

// NewFaultyFS wraps inner, or Default when inner is nil.
func NewFaultyFS(inner FileSystem) *FaultyFS {
	if inner == nil {
		inner = Default
	}
	return &FaultyFS{inner: inner}
}

// AddRule installs f for paths containing pattern, replacing an earlier rule
// with the same pattern.
func (ffs *FaultyFS) AddRule(pattern string, f Fault) {
	ffs.mu.Lock()
	defer ffs.mu.Unlock()
	for i := range ffs.rules {
		if ffs.rules[i].pattern == pattern {
			ffs.rules[i].fault = f
			return
		}
	}
	ffs.rules = append(ffs.rules, rule{pattern: pattern, fault: f})
}

// ClearRules removes every rule. Counters are kept.
func (ffs *FaultyFS) ClearRules() {
	ffs.mu.Lock()
	ffs.rules = nil
	ffs.mu.Unlock()
}

// Renames returns the number of successful renames.
func (ffs *FaultyFS) Renames() int {
	ffs.mu.Lock()
	defer ffs.mu.Unlock()
	return ffs.renames
}

// Injected returns the number of faults injected so far.
func (ffs *FaultyFS) Injected() int {
	ffs.mu.Lock()
	defer ffs.mu.Unlock()
	return ffs.injected
}

func (ffs *FaultyFS) lookup(path string) Fault {
	ffs.mu.Lock()
	defer ffs.mu.Unlock()
	best, n := noFault, -1
	for _, r := range ffs.rules {
		if len(r.pattern) > n && strings.Contains(path, r.pattern) {
			best, n = r.fault, len(r.pattern)
		}
	}
	return best
}

func (ffs *FaultyFS) inject(f Fault) error {
	ffs.mu.Lock()
	ffs.injected++
	ffs.mu.Unlock()
	return f.err()
}

// OpenFile opens name on the wrapped filesystem. The fault in effect at open
// time stays attached to the handle.
func (ffs *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := ffs.inner.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	fault := ffs.lookup(name)
	if fault == noFault {
		return f, nil
	}
	return &faultyFile{File: f, owner: ffs, fault: fault}, nil
}

func (ffs *FaultyFS) Remove(name string) error {
	if fault := ffs.lookup(name); fault.FailOnRemove {
		return ffs.inject(fault)
	}
	return ffs.inner.Remove(name)
}

func (ffs *FaultyFS) Rename(oldpath, newpath string) error {
	if fault := ffs.lookup(newpath); fault.FailOnRename {
		return ffs.inject(fault)
	}
	if err := ffs.inner.Rename(oldpath, newpath); err != nil {
		return err
	}
	ffs.mu.Lock()
	ffs.renames++
	ffs.mu.Unlock()
	return nil
}

func (ffs *FaultyFS) Stat(name string) (os.FileInfo, error) { return ffs.inner.Stat(name) }

func (ffs *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return ffs.inner.MkdirAll(path, perm)
}

func (ffs *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) { return ffs.inner.ReadDir(name) }

type faultyFile struct {
	File
	owner   *FaultyFS
	fault   Fault
	written int64
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if lim := f.fault.FailAfterBytes; lim >= 0 && f.written+int64(len(p)) > lim {
		return 0, f.owner.inject(f.fault)
	}
	n, err := f.File.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *faultyFile) Sync() error {
	if f.fault.FailOnSync {
		return f.owner.inject(f.fault)
	}
	return f.File.Sync()
}

func (f *faultyFile) Close() error {
	err := f.File.Close()
	if f.fault.FailOnClose {
		return f.owner.inject(f.fault)
	}
	return err
}
