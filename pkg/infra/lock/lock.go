// Package lock guards a working tree against concurrent release runs and
// provides atomic file replacement.
package lock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// RunLock is an advisory, process-level lock. It does not coordinate
// machines.
type RunLock struct {
	flock *flock.Flock
	path  string
}

// PathFor returns the lock file location inside a repository's git
// directory, where committing the working tree never picks it up.
func PathFor(gitDir string) string {
	return filepath.Join(gitDir, "shipit.lock")
}

// New creates a run lock at path without acquiring it
func New(path string) *RunLock {
	return &RunLock{flock: flock.New(path), path: path}
}

// Acquire takes the lock without blocking. A lock held by another run is a
// precondition failure.
func (l *RunLock) Acquire() error {
	acquired, err := l.flock.TryLock()
	if err != nil {
		return goerr.Wrap(err, "failed to acquire run lock", goerr.V("path", l.path))
	}
	if !acquired {
		return goerr.New("another release run holds the lock for this repository",
			goerr.V("path", l.path),
			goerr.T(model.ErrTagPrecondition))
	}
	return nil
}

// Release drops the lock
func (l *RunLock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return goerr.Wrap(err, "failed to release run lock", goerr.V("path", l.path))
	}
	return nil
}

// AtomicWrite replaces path with data through a temporary file in the same
// directory, so readers never observe a partial file.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("dir", dir))
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp file", goerr.V("dir", dir))
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return goerr.Wrap(err, "failed to write temp file", goerr.V("path", tmpPath))
	}
	if err := tmp.Sync(); err != nil {
		return goerr.Wrap(err, "failed to sync temp file", goerr.V("path", tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close temp file", goerr.V("path", tmpPath))
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return goerr.Wrap(err, "failed to set permissions", goerr.V("path", tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return goerr.Wrap(err, "failed to replace file", goerr.V("path", path))
	}

	tmp = nil
	return nil
}
