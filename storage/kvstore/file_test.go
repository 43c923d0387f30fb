package kvstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
)

func TestFileKV(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(filepath.Join(dir, "data"))
	assert.NoError(t, err)

	_, err = kv.Get("data_backup")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	assert.NoError(t, kv.Set("data_backup", []byte(`{"timestamp":1,"data":{}}`)))
	val, err := kv.Get("data_backup")
	assert.NoError(t, err)
	assert.Equal(t, `{"timestamp":1,"data":{}}`, string(val))

	// overwrite
	assert.NoError(t, kv.Set("data_backup", []byte(`{"timestamp":2,"data":{}}`)))
	val, err = kv.Get("data_backup")
	assert.NoError(t, err)
	assert.Contains(t, string(val), `"timestamp":2`)

	assert.NoError(t, kv.Delete("data_backup"))
	_, err = kv.Get("data_backup")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)
	assert.ErrorIs(t, kv.Delete("data_backup"), core.ErrKeyNotFound)
}

func TestFileKVEscapesKeys(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	assert.NoError(t, err)

	assert.NoError(t, kv.Set("odd/key name", []byte("1")))
	val, err := kv.Get("odd/key name")
	assert.NoError(t, err)
	assert.Equal(t, "1", string(val))

	// the key never becomes a subdirectory
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.False(t, entries[0].IsDir())
}

func TestInMemKVIsolation(t *testing.T) {
	kv := NewInMemKV()
	orig := []byte(`{"a":1}`)
	assert.NoError(t, kv.Set("k", orig))

	val, err := kv.Get("k")
	assert.NoError(t, err)
	val[0] = 'X' // mutating the copy must not leak back

	again, err := kv.Get("k")
	assert.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again))

	assert.NoError(t, kv.Delete("k"))
	assert.ErrorIs(t, kv.Delete("k"), core.ErrKeyNotFound)
}
