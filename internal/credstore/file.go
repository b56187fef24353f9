package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists credentials as a JSON key/value map on the local
// filesystem. Writes use temp file + rename for crash safety. All scopes
// sharing one path land in the same file under scope-qualified keys, so
// clearing one scope leaves the others intact.
type FileStore struct {
	filePath string
	scope    string

	// Serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path and scope, creating
// parent directories with 0700 permissions if they don't exist.
func NewFileStore(filePath, scope string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		filePath: filePath,
		scope:    scope,
	}, nil
}

// Get returns the stored credential, or ErrNotFound.
func (f *FileStore) Get(ctx context.Context, kind Kind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", err
	}

	value, ok := values[storageKey(kind, f.scope)]
	if !ok || value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Set atomically persists the credential, preserving values of other scopes.
func (f *FileStore) Set(ctx context.Context, kind Kind, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}

	values[storageKey(kind, f.scope)] = value
	return f.save(values)
}

// Clear removes both credentials for this store's scope. Other scopes in the
// same file are untouched. Clearing a missing file is not an error.
func (f *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	delete(values, storageKey(KindAccess, f.scope))
	delete(values, storageKey(KindRefresh, f.scope))
	return f.save(values)
}

// Scope returns the storage partition this store operates on.
func (f *FileStore) Scope() string {
	return f.scope
}

// load reads the credential map from disk. A missing file yields an empty map.
// Refuses to read files with insecure permissions.
func (f *FileStore) load() (map[string]string, error) {
	info, err := os.Stat(f.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm() != 0600 {
		return nil, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return nil, err
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("corrupt credential file %s: %w", f.filePath, err)
	}
	return values, nil
}

// save atomically writes the credential map using temp file + rename.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileStore) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}

	// Create secure temp file in same directory for atomic rename
	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Chmod(0600); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// Atomic rename to final location
	return os.Rename(tempName, f.filePath)
}
