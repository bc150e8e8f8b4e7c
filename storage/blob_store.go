// Package storage holds the blob store backends. Keys are opaque strings;
// callers build them with the helpers in keys.go.
package storage

import (
	"context"
	"io"
	"sync"
	"time"
)

// ProgressFunc receives the cumulative byte count after every chunk written.
// total is the declared size and may be zero when unknown.
type ProgressFunc func(transferred, total int64)

type BlobInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, onProgress ProgressFunc) error
	// ResolveURL returns a URL a client can fetch the blob from.
	ResolveURL(ctx context.Context, key string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress ProgressFunc
	mu         sync.Mutex
}

// withProgress wraps r so every Read reports the running total. A nil
// callback returns r untouched.
func withProgress(r io.Reader, total int64, onProgress ProgressFunc) io.Reader {
	if onProgress == nil {
		return r
	}
	return &progressReader{r: r, total: total, onProgress: onProgress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		read := p.read
		p.mu.Unlock()
		p.onProgress(read, p.total)
	}
	return n, err
}
