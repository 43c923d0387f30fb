// Package kvstore provides the durable key→JSON storage backends behind
// core.KV: a file store for the client (the localStorage analog), an
// in-memory store for tests, and a SQL store for the endpoint emulator.
package kvstore

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// FileKV stores one file per key under a data directory. Writes go through
// a temp file and a rename so a crash mid-write never corrupts a value.
type FileKV struct {
	dir string
}

var _ core.KV = (*FileKV)(nil)

func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}
	return &FileKV{dir: dir}, nil
}

func (kv *FileKV) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(kv.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "reading %q", key)
	}
	return data, nil
}

func (kv *FileKV) Set(key string, value []byte) error {
	path := kv.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return errors.Wrapf(err, "writing %q", key)
	}
	return errors.Wrapf(os.Rename(tmp, path), "writing %q", key)
}

func (kv *FileKV) Delete(key string) error {
	if err := os.Remove(kv.path(key)); err != nil {
		if os.IsNotExist(err) {
			return core.ErrKeyNotFound
		}
		return errors.Wrapf(err, "deleting %q", key)
	}
	return nil
}

func (kv *FileKV) path(key string) string {
	return filepath.Join(kv.dir, url.PathEscape(key)+".json")
}
