// Package s3 is a storage.Store backed by an AWS S3 bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/sakif/learning-shelf/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Options selects the bucket and, for S3-compatible services, the endpoint.
type Options struct {
	Bucket string
	Region string
	// Prefix is prepended to every key, e.g. "uploads/".
	Prefix string
	// Endpoint overrides the AWS endpoint (MinIO, LocalStack). Empty means AWS.
	Endpoint string
	// Credentials overrides the default credential chain (env, shared config, IAM role).
	Credentials *credentials.Credentials
}

// Store keeps each upload as one object under Prefix.
type Store struct {
	client   *awss3.S3
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// New builds an AWS session from opts.
func New(opts Options) (*Store, error) {
	if opts.Bucket == "" || opts.Region == "" {
		return nil, errors.New("s3: bucket and region are required")
	}

	cfg := &aws.Config{Region: aws.String(opts.Region)}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		// Path-style addressing: S3-compatible servers rarely do virtual-host buckets.
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if opts.Credentials != nil {
		cfg.Credentials = opts.Credentials
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3: creating session: %w", err)
	}

	return &Store{
		client:   awss3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
	}, nil
}

func (s *Store) key(name string) *string {
	return aws.String(s.prefix + name)
}

// Put uploads r. s3manager switches to multipart for large bodies.
func (s *Store) Put(ctx context.Context, name string, r io.Reader) error {
	if !storage.ValidName(name) {
		return storage.ErrInvalidName
	}
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         s.key(name),
		Body:        r,
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return fmt.Errorf("s3: uploading %q: %w", name, err)
	}
	return nil
}

// Open streams an object. The caller closes the body.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !storage.ValidName(name) {
		return nil, storage.ErrInvalidName
	}
	out, err := s.client.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotExist
		}
		return nil, fmt.Errorf("s3: getting %q: %w", name, err)
	}
	return out.Body, nil
}

// Delete removes an object. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, name string) error {
	if !storage.ValidName(name) {
		return storage.ErrInvalidName
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(name),
	})
	if err != nil {
		return fmt.Errorf("s3: deleting %q: %w", name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == awss3.ErrCodeNoSuchKey
}
