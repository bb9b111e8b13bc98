package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior.
type Fault struct {
	FailOnOpen     bool
	FailAfterReads int64 // Fail reads after this many successful reads of THIS FILE. -1 to disable.
	FailOnClose    bool
	Err            error
}

// FaultyFS is a FileSystem wrapper that can inject errors. It also counts
// open handles so tests can assert that nothing leaks.
type FaultyFS struct {
	FS      FileSystem
	mu      sync.Mutex
	rules   map[string]Fault // Filename pattern -> Fault
	Default Fault            // Fallback

	readErr error

	open   atomic.Int64
	opened atomic.Int64
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:    fs,
		rules: make(map[string]Fault),
		Default: Fault{
			FailAfterReads: -1,
		},
	}
}

// AddRule adds a fault injection rule for a specific file pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// FailReads makes every read of every handle, including handles already
// open, fail with err. A nil err restores normal reads.
func (f *FaultyFS) FailReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *FaultyFS) currentReadErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readErr
}

// OpenFiles returns the number of handles currently open.
func (f *FaultyFS) OpenFiles() int64 { return f.open.Load() }

// Opened returns the number of handles opened so far.
func (f *FaultyFS) Opened() int64 { return f.opened.Load() }

func (f *FaultyFS) faultFor(name string) Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	fault := f.Default
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
		}
	}
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	return fault
}

func (f *FaultyFS) Open(name string) (File, error) {
	return f.OpenFile(name, os.O_RDONLY, 0)
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fault := f.faultFor(name)
	if fault.FailOnOpen {
		return nil, fault.Err
	}
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	f.open.Add(1)
	f.opened.Add(1)
	return &faultyFile{File: file, fs: f, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error              { return f.FS.Remove(name) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

type faultyFile struct {
	File
	fs     *FaultyFS
	fault  Fault
	reads  atomic.Int64
	closed atomic.Bool
}

func (ff *faultyFile) readFault() error {
	if err := ff.fs.currentReadErr(); err != nil {
		return err
	}
	if ff.fault.FailAfterReads >= 0 && ff.reads.Add(1) > ff.fault.FailAfterReads {
		return ff.fault.Err
	}
	return nil
}

func (ff *faultyFile) Read(p []byte) (int, error) {
	if err := ff.readFault(); err != nil {
		return 0, err
	}
	return ff.File.Read(p)
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if err := ff.readFault(); err != nil {
		return 0, err
	}
	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) Close() error {
	if ff.closed.CompareAndSwap(false, true) {
		ff.fs.open.Add(-1)
	}
	err := ff.File.Close()
	if ff.fault.FailOnClose {
		return ff.fault.Err
	}
	return err
}
