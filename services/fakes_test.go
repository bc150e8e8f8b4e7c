package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"nanodrive/models"
	"nanodrive/repositories"
	"nanodrive/storage"
	"nanodrive/transform"
)

var errInjected = errors.New("injected failure")

// faultyBlobStore is a MemoryStore whose operations fail for keys matching a rule.
type faultyBlobStore struct {
	*storage.MemoryStore

	mu         sync.Mutex
	failPut    func(key string) bool
	failDelete func(key string) bool
	deleted    []string
}

func newFaultyBlobStore() *faultyBlobStore {
	return &faultyBlobStore{MemoryStore: storage.NewMemoryStore("")}
}

func (f *faultyBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, onProgress storage.ProgressFunc) error {
	f.mu.Lock()
	fail := f.failPut != nil && f.failPut(key)
	f.mu.Unlock()
	if fail {
		// Report some progress first, like a transfer dying midway.
		if onProgress != nil && size > 1 {
			onProgress(size/2, size)
		}
		return errInjected
	}
	return f.MemoryStore.Put(ctx, key, r, size, contentType, onProgress)
}

func (f *faultyBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	fail := f.failDelete != nil && f.failDelete(key)
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, key)
	f.mu.Unlock()
	return f.MemoryStore.Delete(ctx, key)
}

func (f *faultyBlobStore) has(key string) bool {
	for _, k := range f.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func (f *faultyBlobStore) keysContaining(part string) []string {
	var out []string
	for _, k := range f.Keys() {
		if strings.Contains(k, part) {
			out = append(out, k)
		}
	}
	return out
}

// blockingBlobStore holds every Put until its context ends.
type blockingBlobStore struct {
	*storage.MemoryStore
	started chan string
}

func (b *blockingBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, onProgress storage.ProgressFunc) error {
	b.started <- key
	<-ctx.Done()
	return ctx.Err()
}

type failingRecords struct {
	repositories.RecordRepository
	insertErr error
	deleteErr error
}

func (f *failingRecords) Insert(ctx context.Context, r *models.TransformRecord) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	return f.RecordRepository.Insert(ctx, r)
}

func (f *failingRecords) Delete(ctx context.Context, ownerID, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.RecordRepository.Delete(ctx, ownerID, id)
}

type failingNodes struct {
	repositories.NodeRepository
	queryErr  error
	updateErr error
}

func (f *failingNodes) Query(ctx context.Context, ownerID string, kind models.NodeKind, path string) ([]models.Node, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.NodeRepository.Query(ctx, ownerID, kind, path)
}

func (f *failingNodes) Update(ctx context.Context, ownerID string, kind models.NodeKind, id string, u repositories.NodeUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.NodeRepository.Update(ctx, ownerID, kind, id, u)
}

type transformerFunc func(ctx context.Context, req transform.Request) (transform.Image, error)

func (f transformerFunc) Transform(ctx context.Context, req transform.Request) (transform.Image, error) {
	return f(ctx, req)
}

func nopLogger() *zap.Logger { return zap.NewNop() }
