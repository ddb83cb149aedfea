package runlock

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultTimeout is how long Acquire waits for a competing holder.
const DefaultTimeout = 5 * time.Second

// Lock errors.
var (
	ErrTimeout  = errors.New("run lock timeout")
	ErrFileOpen = errors.New("failed to open lock file")
)

// Lock is an exclusive advisory lock on a file. It serializes builder runs
// across processes: interleaved cursor writes from two concurrent runs could
// skip or reorder keys, so callers hold the lock for the whole run.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive flock on path, retrying until timeout.
func Acquire(path string, timeout time.Duration) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileOpen, err)
	}

	deadline := time.Now().Add(timeout)

	const retryInterval = 10 * time.Millisecond

	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{path: path, file: file}, nil
		}

		if time.Now().After(deadline) {
			_ = file.Close()
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}

		time.Sleep(retryInterval)
	}
}

// Release drops the lock.
func (l *Lock) Release() {
	if l.file != nil {
		_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
		_ = l.file.Close()
	}
}
