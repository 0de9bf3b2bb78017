//go:build !unix

package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/hupe1980/tickmesh/core"
)

type fileLock struct {
	path string
}

func acquire(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w: %s (held by pid %s)", core.ErrLocked, path, holder(path))
	}
	if err != nil {
		return nil, fmt.Errorf("state: create lock %s: %w", path, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return &fileLock{path: path}, nil
}

func (l *fileLock) Unlock() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	return err
}

// holder returns the pid recorded in the lock file, or "unknown".
func holder(path string) string {
	data, err := os.ReadFile(path)
	if pid := strings.TrimSpace(string(data)); err == nil && pid != "" {
		return pid
	}
	return "unknown"
}
