//go:build unix

package state

import (
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/tickmesh/core"
	"golang.org/x/sys/unix"
)

type flockLock struct {
	file *os.File
}

func acquire(path string) (*flockLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("state: open lock %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", core.ErrLocked, path)
		}
		return nil, fmt.Errorf("state: flock %s: %w", path, err)
	}
	return &flockLock{file: f}, nil
}

// Unlock releases the flock and closes the descriptor. The lock file is kept
// so that concurrent openers always contend on the same inode.
func (l *flockLock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
