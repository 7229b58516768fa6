package repositories

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
)

// FirebaseBlobStore implements engine.BlobStore on a Firebase Storage
// bucket. The engine never inspects image bytes; it only records the URL
// this store returns.
type FirebaseBlobStore struct {
	bucket     *storage.BucketHandle
	bucketName string
}

func NewFirebaseBlobStore(bucket *storage.BucketHandle, bucketName string) *FirebaseBlobStore {
	return &FirebaseBlobStore{bucket: bucket, bucketName: bucketName}
}

// Upload writes data to path and returns its public URL.
func (b *FirebaseBlobStore) Upload(ctx context.Context, data []byte, path string) (string, error) {
	w := b.bucket.Object(path).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("%w: upload %s: %v", engine.ErrTransientIO, path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: upload %s: %v", engine.ErrTransientIO, path, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucketName, path), nil
}
