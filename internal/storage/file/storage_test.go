package file

import (
	"context"
	"errors"
	"io"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/bg-remover/internal/errs"
	"github.com/aliskhannn/bg-remover/internal/model"
)

type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	expiry  time.Duration
	putErr  error
	signErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeClient) PutObject(_ context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = data
	f.types[name] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

func (f *fakeClient) StatObject(_ context.Context, _, name string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[name]; !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", Message: "not found"}
	}
	return minio.ObjectInfo{Key: name}, nil
}

func (f *fakeClient) PresignedGetObject(_ context.Context, bucket, name string, expires time.Duration, _ url.Values) (*url.URL, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	f.expiry = expires
	return url.Parse("https://minio.local/" + bucket + "/" + name + "?X-Amz-Signature=abc")
}

func TestUploadThenSign(t *testing.T) {
	fc := newFakeClient()
	s := newStorage(fc, "orders", time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "thumbnails/u1/cat_1.png", []byte{1, 2, 3}))
	assert.Equal(t, "image/png", fc.types["thumbnails/u1/cat_1.png"])

	u, err := s.Sign(ctx, "thumbnails/u1/cat_1.png")
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/orders/thumbnails/u1/cat_1.png?X-Amz-Signature=abc", u)
	assert.Equal(t, time.Hour, fc.expiry)
}

func TestUploadFailure(t *testing.T) {
	fc := newFakeClient()
	fc.putErr = errors.New("connection refused")
	s := newStorage(fc, "orders", time.Hour)

	err := s.Upload(context.Background(), "watermarks/u1/cat_1.png", []byte{1})
	assert.ErrorIs(t, err, errs.ErrStorageWrite)

	err = s.Upload(context.Background(), "watermarks/u1/cat_1.png", nil)
	assert.ErrorIs(t, err, errs.ErrStorageWrite)
}

func TestSignMissingObject(t *testing.T) {
	s := newStorage(newFakeClient(), "orders", time.Hour)

	_, err := s.Sign(context.Background(), "watermarks/u1/none.png")
	assert.ErrorIs(t, err, errs.ErrStorageSign)
}

func TestSignBackendFailure(t *testing.T) {
	fc := newFakeClient()
	fc.signErr = errors.New("bad credentials")
	s := newStorage(fc, "orders", time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "p.png", []byte{1}))
	_, err := s.Sign(ctx, "p.png")
	assert.ErrorIs(t, err, errs.ErrStorageSign)
}

func TestExpiryClamped(t *testing.T) {
	assert.Equal(t, maxSignExpiry, newStorage(newFakeClient(), "b", 0).expiry)
	assert.Equal(t, maxSignExpiry, newStorage(newFakeClient(), "b", 365*24*time.Hour).expiry)
	assert.Equal(t, time.Minute, newStorage(newFakeClient(), "b", time.Minute).expiry)
}

func TestNamerRandomSuffix(t *testing.T) {
	n := NewNamer(false)
	pattern := regexp.MustCompile(`^watermarks/u1/cat_[0-9a-f]{10}\.png$`)

	first := n.Path(model.KindWatermark, "u1", "cat", "order-1")
	second := n.Path(model.KindWatermark, "u1", "cat", "order-1")

	assert.Regexp(t, pattern, first)
	assert.Regexp(t, pattern, second)
	assert.NotEqual(t, first, second)
}

func TestNamerDeterministicSuffix(t *testing.T) {
	n := NewNamer(true)

	first := n.Path(model.KindThumbnail, "u1", "cat", "order-1")
	again := n.Path(model.KindThumbnail, "u1", "cat", "order-1")
	other := n.Path(model.KindWatermark, "u1", "cat", "order-1")

	assert.Equal(t, first, again)
	assert.Regexp(t, `^thumbnails/u1/cat_[0-9a-f]{10}\.png$`, first)
	assert.NotEqual(t, first[len("thumbnails/"):], other[len("watermarks/"):])
}
