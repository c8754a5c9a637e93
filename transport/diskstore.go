package transport

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
)

type diskStore struct {
	dir string
}

// newDiskStore returns a pageStore backed by flat files under dir, one file
// per key. Used by NewDiskChannel, for local development.
func newDiskStore(dir string) (pageStore, error) {
	if err := os.MkdirAll(dir, 0744); err != nil {
		return nil, err
	}
	return &diskStore{dir}, nil
}

func (d *diskStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := ioutil.ReadFile(filepath.Join(d.dir, key))
	if os.IsNotExist(err) {
		return nil, errPageNotFound
	} else if err != nil {
		return nil, err
	}
	return data, nil
}

func (d *diskStore) Set(ctx context.Context, key string, data []byte) error {
	return ioutil.WriteFile(filepath.Join(d.dir, key), data, 0644)
}
