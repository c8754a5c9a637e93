package transport

import (
	"context"
	"fmt"
)

// ObjectChannel adapts a pageStore (any of the backends in this package)
// into the Channel interface, converting bucket ids to hex-string keys.
type ObjectChannel struct {
	backend  string
	store    pageStore
	pageSize int
}

func (o *ObjectChannel) PageSize() int { return o.pageSize }

func (o *ObjectChannel) ReadBuckets(ctx context.Context, ids []uint64) (map[uint64][]byte, error) {
	ChannelReads.WithLabelValues(o.backend).Inc()

	out := make(map[uint64][]byte, len(ids))
	for _, id := range ids {
		data, err := o.store.Get(ctx, key(id))
		if err == errPageNotFound {
			out[id] = make([]byte, o.pageSize)
			continue
		} else if err != nil {
			return nil, err
		}
		if len(data) != o.pageSize {
			return nil, fmt.Errorf("transport: bucket %d: got %d bytes, want %d", id, len(data), o.pageSize)
		}
		out[id] = data
	}
	return out, nil
}

func (o *ObjectChannel) WriteBuckets(ctx context.Context, pages map[uint64][]byte) error {
	ChannelWrites.WithLabelValues(o.backend).Inc()

	for id, page := range pages {
		if len(page) != o.pageSize {
			return fmt.Errorf("transport: write bucket %d: got %d bytes, want %d", id, len(page), o.pageSize)
		}
		if err := o.store.Set(ctx, key(id), page); err != nil {
			return err
		}
	}
	return nil
}

func key(id uint64) string {
	return fmt.Sprintf("%x", id)
}

// Options configure the optional decorators applied to a cloud-backed
// Channel: how many times to retry a failed request, and how large an
// in-process LRU cache of recently touched pages to keep.
type Options struct {
	RetryAttempts int // 0 disables retries
	CacheSize     int // 0 disables caching
}

func (o Options) wrap(base pageStore) (pageStore, error) {
	store := base
	if o.RetryAttempts > 0 {
		var err error
		store, err = newRetryStore(store, o.RetryAttempts)
		if err != nil {
			return nil, err
		}
	}
	if o.CacheSize > 0 {
		var err error
		store, err = newCacheStore(store, o.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	return store, nil
}

// NewS3Channel returns a Channel backed by AWS S3 (or an S3-compatible
// service). pageSize is the fixed ciphertext length of every bucket page.
func NewS3Channel(appId, appKey, bucket, url, region string, pageSize int, opts Options) (Channel, error) {
	store, err := newS3Store(appId, appKey, bucket, url, region)
	if err != nil {
		return nil, err
	}
	store, err = opts.wrap(store)
	if err != nil {
		return nil, err
	}
	return &ObjectChannel{backend: "s3", store: store, pageSize: pageSize}, nil
}

// NewGCSChannel returns a Channel backed by Google Cloud Storage.
func NewGCSChannel(bucketName, credentialsPath string, pageSize int, opts Options) (Channel, error) {
	store, err := newGCSStore(bucketName, credentialsPath)
	if err != nil {
		return nil, err
	}
	store, err = opts.wrap(store)
	if err != nil {
		return nil, err
	}
	return &ObjectChannel{backend: "gcs", store: store, pageSize: pageSize}, nil
}

// NewB2Channel returns a Channel backed by Backblaze B2.
func NewB2Channel(acctId, keyId, appKey, bucketName string, pageSize int, opts Options) (Channel, error) {
	store, err := newB2Store(acctId, keyId, appKey, bucketName)
	if err != nil {
		return nil, err
	}
	store, err = opts.wrap(store)
	if err != nil {
		return nil, err
	}
	return &ObjectChannel{backend: "b2", store: store, pageSize: pageSize}, nil
}

// NewDiskChannel returns a Channel backed by flat files on the local disk,
// for development and single-machine deployments.
func NewDiskChannel(dir string, pageSize int, opts Options) (Channel, error) {
	store, err := newDiskStore(dir)
	if err != nil {
		return nil, err
	}
	store, err = opts.wrap(store)
	if err != nil {
		return nil, err
	}
	return &ObjectChannel{backend: "disk", store: store, pageSize: pageSize}, nil
}
