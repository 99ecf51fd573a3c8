// Package rotatelog implements the bridge's single rolling log file
//: a plain UTF-8, line-based, ISO-timestamp-prefixed log
// file that is rotated by renaming it to a ".old" sibling once it grows
// past a size threshold.
//
// Grounded on the simple size-check-then-rename rotation in the
// teacher's internal/hostproxy/internals/cmd/clawker-socket-server
// (initLogging), with its fixed ".1" suffix replaced by a fixed ".old"
// suffix and guarded with a gofrs/flock file lock so a crash-restart
// racing the exiting process's final write doesn't truncate or
// interleave the rotated file.
package rotatelog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// DefaultMaxSize is the default rotation threshold (~2 MiB).
const DefaultMaxSize = 2 * 1024 * 1024

// File is a rotating, line-oriented append-only log file.
type File struct {
	path    string
	maxSize int64

	mu   sync.Mutex
	f    *os.File
	lock *flock.Flock
	size int64
}

// Open opens (creating if necessary) the log file at path, rotating an
// existing over-sized file to a ".old" sibling first.
func Open(path string, maxSize int64) (*File, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("rotatelog: create log dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("rotatelog: acquire lock: %w", err)
	}

	if err := rotateIfOversized(path, maxSize); err != nil {
		lock.Unlock()
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("rotatelog: open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		lock.Unlock()
		return nil, fmt.Errorf("rotatelog: stat log file: %w", err)
	}

	return &File{path: path, maxSize: maxSize, f: f, lock: lock, size: info.Size()}, nil
}

func rotateIfOversized(path string, maxSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("rotatelog: stat existing log: %w", err)
	}
	if info.Size() <= maxSize {
		return nil
	}
	old := path + ".old"
	if err := os.Rename(path, old); err != nil {
		return fmt.Errorf("rotatelog: rotate to %s: %w", old, err)
	}
	return nil
}

// WriteLine appends one ISO-timestamp-prefixed line, rotating first if
// the file has grown past maxSize.
func (lf *File) WriteLine(line string) error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.size > lf.maxSize {
		if err := lf.rotateLocked(); err != nil {
			return err
		}
	}

	stamped := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339Nano), line)
	n, err := lf.f.WriteString(stamped)
	lf.size += int64(n)
	if err != nil {
		return fmt.Errorf("rotatelog: write: %w", err)
	}
	return nil
}

func (lf *File) rotateLocked() error {
	if err := lf.f.Close(); err != nil {
		return fmt.Errorf("rotatelog: close before rotate: %w", err)
	}
	if err := rotateIfOversized(lf.path, 0); err != nil {
		return err
	}
	f, err := os.OpenFile(lf.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("rotatelog: reopen after rotate: %w", err)
	}
	lf.f = f
	lf.size = 0
	return nil
}

// Close closes the log file and releases the rotation lock.
func (lf *File) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	err := lf.f.Close()
	lf.lock.Unlock()
	return err
}
