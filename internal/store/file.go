package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// File keeps every key in a single JSON document. The document is re-read on
// each Get so edits made by another process (a settings editor, say) are seen,
// and each Set rewrites it atomically.
type File struct {
	fs   afero.Fs
	path string
	log  *zap.Logger

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewFile creates a file-backed store at path on fs.
func NewFile(fs afero.Fs, path string, logger *zap.Logger) *File {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &File{fs: fs, path: path, log: logger.Named("store.file")}
}

func (f *File) readDocument() (map[string]jsoniter.RawMessage, error) {
	doc := make(map[string]jsoniter.RawMessage)
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt store document %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *File) Get(ctx context.Context, key string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("get", key, err)
	}
	f.mu.Lock()
	doc, err := f.readDocument()
	f.mu.Unlock()
	if err != nil {
		return false, wrap("get", key, err)
	}
	raw, ok := doc[key]
	if !ok {
		return false, nil
	}
	return true, decode(key, raw, dst)
}

func (f *File) Set(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return wrap("set", key, err)
	}
	data, err := encode(key, value)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readDocument()
	if err != nil {
		return wrap("set", key, err)
	}
	doc[key] = data

	out, err := codec.MarshalIndent(doc, "", "  ")
	if err != nil {
		return wrap("set", key, err)
	}
	if err := writeFileAtomic(f.fs, f.path, out); err != nil {
		return wrap("set", key, err)
	}
	f.log.Debug("Wrote store document", zap.String("key", key), zap.Int("bytes", len(out)))
	return nil
}

func (f *File) Close() error { return nil }

// writeFileAtomic writes data to a temp file in the target directory, syncs
// it, then renames it over path so readers never see a partial document.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := afero.TempFile(fs, dir, ".store-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer fs.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}
