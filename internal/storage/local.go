package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var _ Staging = (*LocalStaging)(nil)

// defaultStagingDir is used when no staging directory is configured.
const defaultStagingDir = "wanzami-staging"

// LocalStaging keeps submitted files on local disk until the upload worker
// has pushed them to the object store. Paths outside its directory are never
// opened or removed, and staged files do not survive a restart.
type LocalStaging struct {
	dir string
}

// NewLocalStaging prepares the staging directory, falling back to a folder
// under os.TempDir() when dir is empty.
func NewLocalStaging(dir string) (*LocalStaging, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), defaultStagingDir)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("prepare staging dir %s: %w", dir, err)
	}
	return &LocalStaging{dir: dir}, nil
}

// Dir returns the staging directory.
func (s *LocalStaging) Dir() string {
	return s.dir
}

// Stage copies one submitted file into the staging directory. A partial
// file is removed when the copy fails.
func (s *LocalStaging) Stage(ctx context.Context, name string, data io.Reader) (StagedFile, error) {
	if err := ctx.Err(); err != nil {
		return StagedFile{}, fmt.Errorf("stage %s: %w", name, err)
	}

	f, err := os.CreateTemp(s.dir, stagingPattern(name))
	if err != nil {
		return StagedFile{}, fmt.Errorf("stage %s: %w", name, err)
	}
	path := f.Name()

	n, copyErr := io.Copy(f, data)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return StagedFile{}, fmt.Errorf("stage %s: %w", name, err)
	}
	return StagedFile{Path: path, Size: n}, nil
}

// Open returns a staged file for transfer.
func (s *LocalStaging) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	if !s.owns(path) {
		return nil, fmt.Errorf("open staged file: %s is outside %s", path, s.dir)
	}

	f, err := os.Open(path) // #nosec G304 - path is checked against the staging dir
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	return f, nil
}

// Discard removes staged files once they are uploaded or no longer wanted.
// Empty paths, foreign paths and files already gone are skipped; every other
// failure is reported.
func (s *LocalStaging) Discard(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, fmt.Errorf("discard staged files: %w", err))...)
		}
		if p == "" || !s.owns(p) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("discard %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (s *LocalStaging) owns(path string) bool {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// stagingPattern turns a client supplied file name into an os.CreateTemp
// pattern confined to the staging directory.
func stagingPattern(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = "upload"
	}
	return strings.ReplaceAll(base, "*", "_") + "_*"
}
