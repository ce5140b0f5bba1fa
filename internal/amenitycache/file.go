package amenitycache

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

// DefaultFilePath is where the JSON cache lives when no path is configured.
const DefaultFilePath = "amenity_cache.json"

// FileBackend stores the cache as one JSON document.
type FileBackend struct {
	Path string
}

// NewFileBackend creates a FileBackend at path, or DefaultFilePath if empty.
func NewFileBackend(path string) *FileBackend {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileBackend{Path: path}
}

// Load implements Backend. A missing file yields an empty cache.
func (b *FileBackend) Load(_ context.Context) (map[geo.Key][]model.Amenity, error) {
	data, err := os.ReadFile(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[geo.Key][]model.Amenity{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "amenitycache: read %s", b.Path)
	}
	entries, err := decodeDocument(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrapf(err, "amenitycache: %s", b.Path)
	}
	return entries, nil
}

// Save implements Backend. The whole document is rewritten through a temp
// file in the same directory and renamed over the target.
func (b *FileBackend) Save(ctx context.Context, entries map[geo.Key][]model.Amenity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(b.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "amenitycache: create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := encodeDocument(tmp, entries); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "amenitycache: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "amenitycache: close temp file")
	}
	return eris.Wrapf(os.Rename(tmpName, b.Path), "amenitycache: rename to %s", b.Path)
}
