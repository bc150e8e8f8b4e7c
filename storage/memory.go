package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"nanodrive/common"
)

type memoryBlob struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStore keeps blobs in process memory. ResolveURL returns baseURL + key,
// so pointing baseURL at the blob route makes the URLs fetchable. Without a
// baseURL the URLs only identify the blob.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string]memoryBlob
	baseURL string
	now     func() time.Time
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://blobs/"
	}
	return &MemoryStore{
		blobs:   make(map[string]memoryBlob),
		baseURL: baseURL,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, onProgress ProgressFunc) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, withProgress(r, size, onProgress)); err != nil {
		return fmt.Errorf("failed to buffer %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = memoryBlob{data: buf.Bytes(), contentType: contentType, modified: s.now()}
	return nil
}

func (s *MemoryStore) ResolveURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.blobs[key]; !ok {
		return "", fmt.Errorf("blob %s: %w", key, common.ErrNotFound)
	}
	return s.baseURL + (&url.URL{Path: key}).EscapedPath(), nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, common.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(blob.data)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return fmt.Errorf("blob %s: %w", key, common.ErrNotFound)
	}
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]BlobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blobs := make([]BlobInfo, 0)
	for key, blob := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			blobs = append(blobs, BlobInfo{Key: key, Size: int64(len(blob.data)), LastModified: blob.modified})
		}
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Key < blobs[j].Key })
	return blobs, nil
}

// ContentType reports the content type a blob was stored with.
func (s *MemoryStore) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blobs[key].contentType
}

// Keys lists every stored key in order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs))
	for key := range s.blobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
