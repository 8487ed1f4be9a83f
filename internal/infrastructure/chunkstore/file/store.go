// Package file keeps chunk payloads as files under a base directory.
package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
)

var _ ports.ChunkStore = (*Store)(nil)

// ErrPathTraversal is returned for keys escaping the base directory
var ErrPathTraversal = errors.New("invalid key: path traversal attempt detected")

// Store is a filesystem ports.ChunkStore
type Store struct {
	baseDir string
}

// NewStore creates the base directory when missing
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create base directory")
	}
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve base directory")
	}
	return &Store{baseDir: filepath.Clean(absDir)}, nil
}

// safePath resolves a key inside the base directory
func (s *Store) safePath(key string) (string, error) {
	resolved := filepath.Clean(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if resolved != s.baseDir && !strings.HasPrefix(resolved, s.baseDir+string(os.PathSeparator)) {
		return "", errors.Wrapf(ErrPathTraversal, "key '%s'", key)
	}
	return resolved, nil
}

// Put writes the payload through a temporary file renamed into place
func (s *Store) Put(_ context.Context, key string, payload []byte) error {
	path, err := s.safePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create chunk directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary chunk file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write chunk")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to sync chunk")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close chunk")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "failed to publish chunk")
}

// Get reads the payload
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.safePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(ports.ErrNotFound, "chunk '%s'", key)
	}
	return data, errors.Wrapf(err, "read chunk '%s'", key)
}

// Delete removes the payload, missing files are ignored
func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "delete chunk '%s'", key)
	}
	return nil
}

// List walks the deepest directory named by the prefix in lexical order
func (s *Store) List(ctx context.Context, prefix string, consume func(string) error) error {
	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = filepath.ToSlash(filepath.Dir(filepath.FromSlash(prefix)))
	}
	root, err := s.safePath(dir)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		return consume(key)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
