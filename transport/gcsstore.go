package transport

import (
	"context"
	"io/ioutil"
	"os"

	"cloud.google.com/go/storage"
)

type gcsStore struct {
	bucket *storage.BucketHandle
}

// newGCSStore returns a pageStore backed by Google Cloud Storage.
// credentialsPath, if non-empty, is a path to a service-account key file.
func newGCSStore(bucketName, credentialsPath string) (pageStore, error) {
	if credentialsPath != "" {
		if err := os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", credentialsPath); err != nil {
			return nil, err
		}
	}
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, err
	}
	return &gcsStore{client.Bucket(bucketName)}, nil
}

func (g *gcsStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		gcsOps.WithLabelValues("get", "true").Inc()
		return nil, errPageNotFound
	} else if err != nil {
		gcsOps.WithLabelValues("get", "false").Inc()
		return nil, err
	}
	defer r.Close()

	data, err := ioutil.ReadAll(r)
	if err != nil {
		gcsOps.WithLabelValues("get", "false").Inc()
		return nil, err
	}
	gcsOps.WithLabelValues("get", "true").Inc()
	return data, nil
}

func (g *gcsStore) Set(ctx context.Context, key string, data []byte) error {
	w := g.bucket.Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		gcsOps.WithLabelValues("set", "false").Inc()
		return err
	} else if err := w.Close(); err != nil {
		gcsOps.WithLabelValues("set", "false").Inc()
		return err
	}
	gcsOps.WithLabelValues("set", "true").Inc()
	return nil
}
