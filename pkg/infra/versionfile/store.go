package versionfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/lock"
)

// Store keeps the version record as a single line in a plain text file
type Store struct {
	path string
}

// New creates a store for file, resolved against repoDir when relative
func New(repoDir, file string) *Store {
	if !filepath.IsAbs(file) {
		file = filepath.Join(repoDir, file)
	}
	return &Store{path: file}
}

var _ interfaces.VersionStore = (*Store)(nil)

// Path returns the location of the version file
func (s *Store) Path() string {
	return s.path
}

// Read returns the trimmed content, or nil when the file does not exist or
// is blank
func (s *Store) Read(ctx context.Context) (*string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read version file", goerr.V("path", s.path))
	}

	v := strings.TrimSpace(string(raw))
	if v == "" {
		return nil, nil
	}
	return &v, nil
}

func (s *Store) Write(ctx context.Context, v model.Version) error {
	if err := lock.AtomicWrite(s.path, []byte(v.String()+"\n"), 0644); err != nil {
		return goerr.Wrap(err, "failed to write version file", goerr.V("path", s.path))
	}
	ctxlog.From(ctx).Debug("Version file written", "path", s.path, "version", v.String())
	return nil
}
