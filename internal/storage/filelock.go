package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// fileLock is an exclusive flock held on the ".lock" file beside a store
// file. Separate opens of the lock file exclude each other, so goroutines
// and processes sharing a data directory both serialize on it.
type fileLock struct {
	f *os.File
}

// acquireLock blocks until it holds the lock for path.
func acquireLock(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock for %s: %w", filepath.Base(path), err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("locking %s: %w", filepath.Base(path), err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// withFileLock holds the lock for path while fn runs. Stores put their
// whole load, change and write sequence inside fn; a write made outside it
// can still lose updates.
func withFileLock(path string, fn func() error) error {
	lock, err := acquireLock(path)
	if err != nil {
		return err
	}
	defer func() { _ = lock.release() }()
	return fn()
}
