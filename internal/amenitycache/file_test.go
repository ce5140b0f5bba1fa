package amenitycache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

// legacyDocument is the shape written by earlier versions of the tool:
// no category field and keys with a space after the comma.
const legacyDocument = `{
  "(49.2827, -123.1207)": [
    {"type": "node", "id": 10, "name": "N/A", "amenity": "school", "shop": "N/A",
     "latitude": 49.285, "longitude": -123.135},
    {"type": "node", "id": 30, "name": "Corner Market", "amenity": "N/A", "shop": "grocery",
     "latitude": 49.283, "longitude": -123.121}
  ],
  "(49.2684, -123.1683)": []
}`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "amenity_cache.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	be := NewFileBackend(filepath.Join(t.TempDir(), "absent.json"))
	entries, err := be.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileBackend_EmptyFileIsEmpty(t *testing.T) {
	be := NewFileBackend(writeFile(t, ""))
	entries, err := be.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileBackend_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultFilePath, NewFileBackend("").Path)
}

func TestFileBackend_LegacyDocument(t *testing.T) {
	be := NewFileBackend(writeFile(t, legacyDocument))
	entries, err := be.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got := entries[downtown]
	require.Len(t, got, 2)
	assert.Equal(t, model.CategorySchool, got[0].Category)
	assert.Equal(t, model.CategoryGrocery, got[1].Category)
	assert.Equal(t, model.NotAvailable, got[0].Name)

	empty, ok := entries[kits]
	require.True(t, ok)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFileBackend_MissingTagsBecomeNA(t *testing.T) {
	be := NewFileBackend(writeFile(t, `{"(1, 2)": [{"type": "node", "id": 1, "amenity": "university", "latitude": 1, "longitude": 2}]}`))
	entries, err := be.Load(context.Background())
	require.NoError(t, err)

	got := entries[geo.Key{Lat: 1, Lon: 2}]
	require.Len(t, got, 1)
	assert.Equal(t, model.NotAvailable, got[0].Name)
	assert.Equal(t, model.NotAvailable, got[0].ShopTag)
	assert.Equal(t, model.CategoryUniversity, got[0].Category)
}

func TestFileBackend_MalformedKey(t *testing.T) {
	be := NewFileBackend(writeFile(t, `{"__import__('os').system('x')": []}`))
	_, err := be.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "__import__")
}

func TestFileBackend_MalformedAmenities(t *testing.T) {
	be := NewFileBackend(writeFile(t, `{"(1, 2)": {"not": "a list"}}`))
	_, err := be.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(1, 2)")
}

func TestFileBackend_MalformedDocument(t *testing.T) {
	be := NewFileBackend(writeFile(t, `[1, 2, 3]`))
	_, err := be.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode document")
}

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	be := NewFileBackend(path)
	in := map[geo.Key][]model.Amenity{
		downtown: sampleAmenities(),
		kits:     {},
	}

	require.NoError(t, be.Save(context.Background(), in))
	out, err := be.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, out)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"(49.2827, -123.1207)"`)
	assert.Contains(t, string(raw), `"(49.2684, -123.1683)": []`)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileBackend_ThroughCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	first := New(NewFileBackend(path))
	require.NoError(t, first.Load(context.Background()))
	first.Put(downtown, sampleAmenities())
	require.NoError(t, first.Save(context.Background()))

	second := New(NewFileBackend(path))
	require.NoError(t, second.Load(context.Background()))
	got, ok := second.Get(downtown)
	require.True(t, ok)
	assert.Equal(t, sampleAmenities(), got)
}

func TestFileBackend_SaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewFileBackend(filepath.Join(t.TempDir(), "c.json")).Save(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
