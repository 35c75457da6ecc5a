package flock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/mrz1836/scribe/internal/constants"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
)

// pollInterval is how often a busy lock is retried.
const pollInterval = 50 * time.Millisecond

// Lock is a held output directory lock.
type Lock struct {
	file *os.File
	path string
	once sync.Once
}

// Acquire locks dir, waiting up to timeout for a concurrent holder to
// release it. A zero timeout tries exactly once. The directory is created
// when missing.
func Acquire(ctx context.Context, dir string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, constants.LockFileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //#nosec G304 -- path is built from the output directory
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err = Exclusive(f.Fd()); err == nil {
			break
		}
		if timeout <= 0 {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s", scribeerrors.ErrOutputLocked, dir)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s after %s", scribeerrors.ErrLockTimeout, dir, timeout)
		}

		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	// Holder pid, for humans inspecting a stuck directory.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{file: f, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. It is safe to call twice.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		if uerr := Unlock(l.file.Fd()); uerr != nil {
			err = uerr
		}
		if cerr := l.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
