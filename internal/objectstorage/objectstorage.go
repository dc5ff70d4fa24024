// Package objectstorage wraps the S3 operations backing the File and
// Build artifact paths described in §6: uploading bundle/asset files and
// build artifacts (ZIP/AAR/POM/maven-metadata.xml), and producing their
// public URLs.
package objectstorage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// Store uploads and addresses objects in the configured bucket.
type Store struct {
	client         *s3.Client
	bucket         string
	forcePathStyle bool
	timeout        time.Duration
}

// Config carries the subset of internal/config.ObjectStorageConfig the
// store needs.
type Config struct {
	Bucket         string
	ForcePathStyle bool
	UploadTimeout  time.Duration
}

// New builds a Store.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{client: client, bucket: cfg.Bucket, forcePathStyle: cfg.ForcePathStyle, timeout: cfg.UploadTimeout}
}

// Put uploads content at key and returns its public URL.
func (s *Store) Put(key string, content []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return s.URL(key), nil
}

// Get downloads the object at key.
func (s *Store) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrNotFound, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	return buf.Bytes(), nil
}

// URL returns the object's public URL, addressed path-style when
// forcePathStyle is set (used for S3-compatible test/local endpoints).
func (s *Store) URL(key string) string {
	if s.forcePathStyle {
		return fmt.Sprintf("/%s/%s", s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}
