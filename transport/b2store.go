package transport

import (
	"bytes"
	"context"
	"io/ioutil"
	"sync"

	backblaze "gopkg.in/kothar/go-backblaze.v0"
)

type b2Store struct {
	pool *sync.Pool
}

// newB2Store returns a pageStore backed by Backblaze B2. acctId/keyId/appKey
// are credentials for a B2 bucket named bucketName; see Backblaze's
// application-key docs for the acctId-vs-keyId distinction.
func newB2Store(acctId, keyId, appKey, bucketName string) (pageStore, error) {
	creds := backblaze.Credentials{
		AccountID:      acctId,
		ApplicationKey: appKey,
		KeyID:          keyId,
	}
	if acctId != "" {
		creds.KeyID = ""
	}

	pool := &sync.Pool{
		New: func() interface{} {
			conn, err := backblaze.NewB2(creds)
			if err != nil {
				return err
			}
			bucket, err := conn.Bucket(bucketName)
			if err != nil {
				return err
			}
			return bucket
		},
	}
	return &b2Store{pool}, nil
}

func (b *b2Store) Get(ctx context.Context, key string) ([]byte, error) {
	bucket := b.pool.Get()
	if err, ok := bucket.(error); ok {
		return nil, err
	}
	defer b.pool.Put(bucket)

	_, reader, err := bucket.(*backblaze.Bucket).DownloadFileByName(key)
	if err != nil {
		if b2err, ok := err.(*backblaze.B2Error); ok && b2err.Status == 404 {
			b2Ops.WithLabelValues("get", "true").Inc()
			return nil, errPageNotFound
		}
		b2Ops.WithLabelValues("get", "false").Inc()
		return nil, err
	}
	defer reader.Close()

	data, err := ioutil.ReadAll(reader)
	if err != nil {
		b2Ops.WithLabelValues("get", "false").Inc()
		return nil, err
	}
	b2Ops.WithLabelValues("get", "true").Inc()
	return data, nil
}

func (b *b2Store) Set(ctx context.Context, key string, data []byte) error {
	bucket := b.pool.Get()
	if err, ok := bucket.(error); ok {
		return err
	}
	defer b.pool.Put(bucket)

	meta := make(map[string]string)
	if _, err := bucket.(*backblaze.Bucket).UploadTypedFile(key, "application/octet-stream", meta, bytes.NewReader(data)); err != nil {
		b2Ops.WithLabelValues("set", "false").Inc()
		return err
	}
	b2Ops.WithLabelValues("set", "true").Inc()
	return nil
}
