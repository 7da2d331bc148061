package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aliskhannn/bg-remover/internal/errs"
)

const (
	contentTypePNG = "image/png"

	// maxSignExpiry is the longest lifetime S3-compatible presigning allows.
	maxSignExpiry = 7 * 24 * time.Hour
)

// objectClient is the subset of the MinIO client used by Storage.
type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Storage provides an S3-compatible storage backend using MinIO.
// It writes derivative artifacts and mints read-only download links for them.
type Storage struct {
	client     objectClient
	bucketName string
	expiry     time.Duration
}

// NewStorage creates a new Storage instance connected to the specified MinIO server.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, expiry time.Duration) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return newStorage(client, bucketName, expiry), nil
}

func newStorage(client objectClient, bucketName string, expiry time.Duration) *Storage {
	if expiry <= 0 || expiry > maxSignExpiry {
		expiry = maxSignExpiry
	}

	return &Storage{
		client:     client,
		bucketName: bucketName,
		expiry:     expiry,
	}
}

// Upload writes buf to path as a PNG object. Uploading to an existing path
// overwrites it.
func (s *Storage) Upload(ctx context.Context, path string, buf []byte) error {
	if path == "" || len(buf) == 0 {
		return errs.Wrap(errs.ErrStorageWrite, "upload", "path and buffer are required", nil)
	}

	_, err := s.client.PutObject(ctx, s.bucketName, path, bytes.NewReader(buf), int64(len(buf)), minio.PutObjectOptions{
		ContentType: contentTypePNG,
	})
	if err != nil {
		return errs.Wrap(errs.ErrStorageWrite, "upload", fmt.Sprintf("failed to save %s", path), err)
	}

	return nil
}

// Sign mints a time-limited, read-only URL for the object at path.
// The object must already exist.
func (s *Storage) Sign(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", errs.Wrap(errs.ErrStorageSign, "sign", "path is required", nil)
	}

	if _, err := s.client.StatObject(ctx, s.bucketName, path, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", errs.Wrap(errs.ErrStorageSign, "sign", fmt.Sprintf("no object at %s", path), err)
		}
		return "", errs.Wrap(errs.ErrStorageSign, "sign", fmt.Sprintf("failed to stat %s", path), err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, path, s.expiry, nil)
	if err != nil {
		return "", errs.Wrap(errs.ErrStorageSign, "sign", fmt.Sprintf("failed to presign %s", path), err)
	}

	return u.String(), nil
}
