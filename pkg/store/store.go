// Package store is the sole file-system interface the manifest core
// depends on: the artifact-store contract of the design. It reads and
// writes JSON under an allowed root, with atomic replace and
// backup-on-write.
//
// Adapted from the teacher's pkg/persistence: that package's
// INodePersistence interface backs a KV node-state store (Badger/Redis);
// this one backs a flat JSON-file artifact store, but keeps the same
// shape — an interface in its own file, a concrete implementation beside
// it, thread-safe by construction, serializing writes per path.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/payrox/manifest-core/pkg/coreerr"
	"github.com/payrox/manifest-core/pkg/manifest"
)

// Store is the persistence contract the manifest core depends on.
type Store interface {
	// ReadJSON reads path, parses it as JSON into v, and rejects paths
	// outside the allowed root.
	ReadJSON(path string, v any) error

	// ReadText reads path as raw text, with the same path validation as
	// ReadJSON but no parsing.
	ReadText(path string) (string, error)

	// WriteJSON serializes v with stable key ordering and 2-space
	// indentation, writes to a temp file, fsyncs, and atomically renames
	// it into place. If a previous file exists and opts.Backup is true,
	// it is renamed to a suffixed backup path before replacement.
	WriteJSON(path string, v any, opts WriteOptions) error

	// EnsureDir idempotently creates a directory (and its parents).
	EnsureDir(path string) error

	// SaveArtifact is a thin wrapper over WriteJSON that persists a
	// deployment artifact in the fixed Manifest shape (§3), always with a
	// backup of any previous artifact at path.
	SaveArtifact(path string, artifact manifest.Manifest) error
}

// WriteOptions controls WriteJSON's backup behavior.
type WriteOptions struct {
	Backup bool
}

// FileStore is the filesystem-backed implementation of Store. All paths
// passed to its methods are validated to lie within AllowedRoot.
type FileStore struct {
	allowedRoot string
	mu          sync.Mutex // serializes writes per-process; see design §5
}

// New constructs a FileStore rooted at allowedRoot. allowedRoot is
// resolved to an absolute, cleaned path once at construction time.
func New(allowedRoot string) (*FileStore, error) {
	abs, err := filepath.Abs(allowedRoot)
	if err != nil {
		return nil, coreerr.Newf(coreerr.KindFileOperationError, "resolve allowed root: %v", err)
	}
	return &FileStore{allowedRoot: abs}, nil
}

// resolve validates that path lexically normalizes to a location inside
// the allowed root and returns the cleaned absolute path. Symlink-based
// escapes are rejected by resolving symlinks in the path's parent
// directory, when that directory exists, and re-checking containment
// against the symlink-resolved root.
func (s *FileStore) resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", coreerr.Newf(coreerr.KindSecurityError, "resolve path: %v", err)
	}
	clean := filepath.Clean(abs)

	rel, err := filepath.Rel(s.allowedRoot, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", coreerr.Newf(coreerr.KindSecurityError, "path escapes allowed root").WithContext("path", path)
	}

	if real, err := filepath.EvalSymlinks(filepath.Dir(clean)); err == nil {
		root := s.allowedRoot
		if realRoot, err := filepath.EvalSymlinks(root); err == nil {
			root = realRoot
		}
		if realRel, err := filepath.Rel(root, real); err != nil || realRel == ".." || strings.HasPrefix(realRel, ".."+string(filepath.Separator)) {
			return "", coreerr.Newf(coreerr.KindSecurityError, "path escapes allowed root via symlink").WithContext("path", path)
		}
	}

	return clean, nil
}

// ReadJSON implements Store.
func (s *FileStore) ReadJSON(path string, v any) error {
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return coreerr.Newf(coreerr.KindFileOperationError, "read %s: %v", path, err).WithContext("path", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return coreerr.Newf(coreerr.KindFileOperationError, "parse json %s: %v", path, err).WithContext("path", path)
	}
	return nil
}

// ReadText implements Store.
func (s *FileStore) ReadText(path string) (string, error) {
	resolved, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", coreerr.Newf(coreerr.KindFileOperationError, "read %s: %v", path, err).WithContext("path", path)
	}
	return string(data), nil
}

// WriteJSON implements Store.
func (s *FileStore) WriteJSON(path string, v any, opts WriteOptions) error {
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return coreerr.Newf(coreerr.KindFileOperationError, "marshal %s: %v", path, err).WithContext("path", path)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return coreerr.Newf(coreerr.KindFileOperationError, "mkdir for %s: %v", path, err).WithContext("path", path)
	}

	tmpPath := resolved + ".tmp." + uuid.NewString()
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return coreerr.Newf(coreerr.KindFileOperationError, "create temp file for %s: %v", path, err).WithContext("path", path)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return coreerr.Newf(coreerr.KindFileOperationError, "write temp file for %s: %v", path, err).WithContext("path", path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return coreerr.Newf(coreerr.KindFileOperationError, "fsync temp file for %s: %v", path, err).WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return coreerr.Newf(coreerr.KindFileOperationError, "close temp file for %s: %v", path, err).WithContext("path", path)
	}

	if opts.Backup {
		if _, err := os.Stat(resolved); err == nil {
			backupPath := fmt.Sprintf("%s.bak.%d", resolved, time.Now().UnixNano())
			if err := os.Rename(resolved, backupPath); err != nil {
				_ = os.Remove(tmpPath)
				return coreerr.Newf(coreerr.KindFileOperationError, "backup previous %s: %v", path, err).WithContext("path", path)
			}
		}
	}

	if err := os.Rename(tmpPath, resolved); err != nil {
		_ = os.Remove(tmpPath)
		return coreerr.Newf(coreerr.KindFileOperationError, "atomic replace %s: %v", path, err).WithContext("path", path)
	}

	return nil
}

// SaveArtifact implements Store.
func (s *FileStore) SaveArtifact(path string, artifact manifest.Manifest) error {
	return s.WriteJSON(path, artifact, WriteOptions{Backup: true})
}

// EnsureDir implements Store.
func (s *FileStore) EnsureDir(path string) error {
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return coreerr.Newf(coreerr.KindFileOperationError, "ensure dir %s: %v", path, err).WithContext("path", path)
	}
	return nil
}
