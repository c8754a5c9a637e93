package transport

import (
	"bytes"
	"context"
	"io/ioutil"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

type s3Store struct {
	bucket string
	client *s3.S3
}

// newS3Store returns a pageStore backed by AWS S3 or an S3-compatible
// service. appId/appKey are static credentials; bucket names the bucket;
// url/region locate the cluster.
func newS3Store(appId, appKey, bucket, url, region string) (pageStore, error) {
	client := s3.New(session.New(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(appId, appKey, ""),
		Endpoint:         aws.String(url),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(true),
	}))
	return &s3Store{bucket, client}, nil
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
		s3Ops.WithLabelValues("get", "true").Inc()
		return nil, errPageNotFound
	} else if err != nil {
		s3Ops.WithLabelValues("get", "false").Inc()
		return nil, err
	}
	defer out.Body.Close()

	data, err := ioutil.ReadAll(out.Body)
	if err != nil {
		s3Ops.WithLabelValues("get", "false").Inc()
		return nil, err
	}
	s3Ops.WithLabelValues("get", "true").Inc()
	return data, nil
}

func (s *s3Store) Set(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		s3Ops.WithLabelValues("set", "false").Inc()
		return err
	}
	s3Ops.WithLabelValues("set", "true").Inc()
	return nil
}
