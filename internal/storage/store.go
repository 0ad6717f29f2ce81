// Package storage keeps the template and every per-step output revision
// of a user's chained document on local disk. Revisions are written once
// and never overwritten, so prior steps stay available for audit and
// rollback.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

// Store is a directory-backed document revision store.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", abs, err)
	}
	return &Store{root: abs}, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// SaveRevision writes one step's output document under the user's
// directory and returns its path. The uuid suffix guarantees a fresh
// file per fill, even when a step is re-run.
func (s *Store) SaveRevision(userID string, step int, data []byte) (string, error) {
	userDir := filepath.Join(s.root, sanitize(userID))
	if err := os.MkdirAll(userDir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create user directory: %w", err)
	}

	name := fmt.Sprintf("step_%02d_%s.pdf", step, uuid.NewString())
	path := filepath.Join(userDir, name)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("failed to write document revision: %w", err)
	}
	return path, nil
}

// Read returns the bytes of a stored revision after confirming the path
// lies inside the store.
func (s *Store) Read(path string) ([]byte, error) {
	if err := s.validatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document revision: %w", err)
	}
	return data, nil
}

// validatePath checks a path is within the store's root directory,
// rejecting traversal and symlink escapes.
func (s *Store) validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	realPath := cleanPath
	if info, err := os.Lstat(cleanPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
			realPath = resolved
		}
	}

	rootWithSep := s.root
	if !strings.HasSuffix(rootWithSep, string(filepath.Separator)) {
		rootWithSep += string(filepath.Separator)
	}
	if !strings.HasPrefix(cleanPath, rootWithSep) || !strings.HasPrefix(realPath, rootWithSep) {
		return fmt.Errorf("path is outside the storage directory: %s", path)
	}
	return nil
}

// sanitize strips path separators out of user-controlled names.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" {
		return "_"
	}
	return name
}
