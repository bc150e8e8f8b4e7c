package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kurin/blazer/b2"
)

// B2Store keeps blobs in a Backblaze B2 bucket and hands out signed URLs.
type B2Store struct {
	client     *b2.Client
	bucketName string
	bucket     *b2.Bucket
	urlTTL     time.Duration
}

func NewB2Store(ctx context.Context, keyID, applicationKey, bucketName string, urlTTL time.Duration) (*B2Store, error) {
	client, err := b2.NewClient(ctx, keyID, applicationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create B2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", bucketName, err)
	}

	return &B2Store{
		client:     client,
		bucketName: bucketName,
		bucket:     bucket,
		urlTTL:     urlTTL,
	}, nil
}

func (s *B2Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, onProgress ProgressFunc) error {
	writer := s.bucket.Object(key).NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: contentType})

	// Stream straight from the caller into B2.
	if _, err := io.Copy(writer, withProgress(r, size, onProgress)); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload %s to B2: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close B2 writer: %w", err)
	}
	return nil
}

// ResolveURL generates a signed download URL for private buckets.
func (s *B2Store) ResolveURL(ctx context.Context, key string) (string, error) {
	urlObj, err := s.bucket.Object(key).AuthURL(ctx, s.urlTTL, "GET")
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return urlObj.String(), nil
}

func (s *B2Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.bucket.Object(key).NewReader(ctx), nil
}

func (s *B2Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s from B2: %w", key, err)
	}
	return nil
}

func (s *B2Store) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	var blobs []BlobInfo
	iter := s.bucket.List(ctx, b2.ListPrefix(prefix))
	for iter.Next() {
		obj := iter.Object()
		attrs, err := obj.Attrs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read attrs of %s: %w", obj.Name(), err)
		}
		blobs = append(blobs, BlobInfo{Key: obj.Name(), Size: attrs.Size, LastModified: attrs.UploadTimestamp})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s in B2: %w", prefix, err)
	}
	return blobs, nil
}
