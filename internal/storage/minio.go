package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultContentType = "application/octet-stream"
	objectKeyPrefix    = "photos/"

	// transformQuery pins the display rendition served by the image proxy
	// fronting the bucket: square face-centered fill crop.
	transformQuery = "w=500&h=500&fit=crop&gravity=face"
)

var (
	errMissingBucket    = errors.New("storage: bucket name required")
	errMissingPublicURL = errors.New("storage: public base url required")
	errMissingHandle    = errors.New("storage: delete handle required")
)

// minioAPI is the slice of the minio client this adapter uses.
type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioConfig bundles the settings needed to reach the object store.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// MinioStore implements ObjectStore against a MinIO/S3-compatible bucket.
type MinioStore struct {
	client        minioAPI
	bucket        string
	publicBaseURL string
}

// NewMinioStore creates the adapter and the underlying minio client. Missing
// credentials surface here, at startup, not per request.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errMissingBucket
	}
	if strings.TrimSpace(cfg.PublicBaseURL) == "" {
		return nil, errMissingPublicURL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create minio client: %w", err)
	}

	return &MinioStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Upload stores the payload under a fresh object key and returns the display
// URL plus the key as deletion handle. Zero-length payloads are stored as-is.
func (s *MinioStore) Upload(ctx context.Context, object io.Reader, size int64, contentType string) (UploadResult, error) {
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}

	id, err := uuid.NewV7()
	if err != nil {
		return UploadResult{}, err
	}
	key := objectKeyPrefix + id.String()

	_, err = s.client.PutObject(ctx, s.bucket, key, object, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("storage: upload failed: %w", err)
	}

	return UploadResult{
		URL:    fmt.Sprintf("%s/%s?%s", s.publicBaseURL, key, transformQuery),
		Handle: key,
	}, nil
}

// Remove deletes the remote object identified by the handle.
func (s *MinioStore) Remove(ctx context.Context, handle string) error {
	if strings.TrimSpace(handle) == "" {
		return errMissingHandle
	}
	if err := s.client.RemoveObject(ctx, s.bucket, handle, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: remove failed: %w", err)
	}
	return nil
}
