package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanodrive/common"
	"nanodrive/models"
	"nanodrive/repositories"
	"nanodrive/storage"
)

func uploadFile(name string, data []byte, mime string) UploadFile {
	return UploadFile{Name: name, Size: int64(len(data)), MimeType: mime, Content: io.NopCloser(bytes.NewReader(data))}
}

// progressLog records every snapshot a subscriber sees, per task.
type progressLog struct {
	mu   sync.Mutex
	seen map[string][]float64
}

func watch(c *UploadCoordinator, ownerID string) (*progressLog, func()) {
	log := &progressLog{seen: map[string][]float64{}}
	ch, cancel := c.Subscribe(ownerID)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range ch {
			log.mu.Lock()
			for _, task := range snap {
				log.seen[task.FileName] = append(log.seen[task.FileName], task.Progress)
			}
			log.mu.Unlock()
		}
	}()
	return log, func() { cancel(); <-done }
}

func TestUploadCreatesFileNode(t *testing.T) {
	repo := repositories.NewMemoryNodeRepository()
	blobs := newFaultyBlobStore()
	c := NewUploadCoordinator(repo, blobs, 0, nopLogger(), nil)
	ctx := context.Background()

	batch, err := c.Submit(ctx, "u1", "/", []UploadFile{uploadFile("report.pdf", make([]byte, 500000), "application/pdf")})
	require.NoError(t, err)
	results := batch.Wait()
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	nodes, err := NewDirectoryService(repo, nopLogger()).List(ctx, "u1", "/")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "report.pdf", nodes[0].Name)
	assert.Equal(t, int64(500000), nodes[0].Size)
	assert.Equal(t, "application/pdf", nodes[0].MimeType)
	assert.Regexp(t, `^users/u1/files/.+_report\.pdf$`, nodes[0].BlobLocation)
	assert.NotEmpty(t, nodes[0].DownloadURL)
	assert.True(t, blobs.has(nodes[0].BlobLocation))

	assert.Empty(t, c.Tasks("u1"))
}

func TestUploadManyFilesConcurrently(t *testing.T) {
	repo := repositories.NewMemoryNodeRepository()
	c := NewUploadCoordinator(repo, newFaultyBlobStore(), 0, nopLogger(), nil)
	ctx := context.Background()

	log, stop := watch(c, "u1")

	const n = 8
	files := make([]UploadFile, n)
	for i := range files {
		files[i] = uploadFile(fmt.Sprintf("file-%d.bin", i), make([]byte, 100000+i*1000), "application/octet-stream")
	}
	batch, err := c.Submit(ctx, "u1", "/inbox", files)
	require.NoError(t, err)
	assert.Len(t, batch.TaskIDs, n)

	for _, r := range batch.Wait() {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Node)
	}
	stop()

	nodes, err := repo.Query(ctx, "u1", models.KindFile, "/inbox")
	require.NoError(t, err)
	assert.Len(t, nodes, n)

	log.mu.Lock()
	defer log.mu.Unlock()
	for name, values := range log.seen {
		for i := 1; i < len(values); i++ {
			assert.GreaterOrEqual(t, values[i], values[i-1], name)
		}
		for _, v := range values {
			assert.LessOrEqual(t, v, 100.0, name)
		}
	}
}

func TestUploadSniffsMimeType(t *testing.T) {
	repo := repositories.NewMemoryNodeRepository()
	c := NewUploadCoordinator(repo, newFaultyBlobStore(), 0, nopLogger(), nil)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	batch, err := c.Submit(context.Background(), "u1", "/", []UploadFile{uploadFile("pixel", png, "")})
	require.NoError(t, err)
	results := batch.Wait()
	require.NoError(t, results[0].Err)
	assert.Equal(t, "image/png", results[0].Node.MimeType)
	assert.Equal(t, int64(len(png)), results[0].Node.Size)
}

func TestUploadFailureCreatesNoNode(t *testing.T) {
	repo := repositories.NewMemoryNodeRepository()
	blobs := newFaultyBlobStore()
	blobs.failPut = func(key string) bool { return strings.HasSuffix(key, "_bad.txt") }
	c := NewUploadCoordinator(repo, blobs, 0, nopLogger(), nil)
	ctx := context.Background()

	log, stop := watch(c, "u1")
	batch, err := c.Submit(ctx, "u1", "/", []UploadFile{
		uploadFile("good.txt", []byte("fine"), "text/plain"),
		uploadFile("bad.txt", []byte("broken"), "text/plain"),
	})
	require.NoError(t, err)
	results := batch.Wait()
	stop()

	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.True(t, common.IsTransfer(results[1].Err))
	assert.Contains(t, results[1].Err.Error(), "bad.txt")

	nodes, err := repo.Query(ctx, "u1", models.KindFile, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"good.txt"}, nodeNames(nodes))
	assert.Empty(t, c.Tasks("u1"))

	failures := c.Failures("u1")
	require.Len(t, failures, 1)
	assert.Equal(t, "bad.txt", failures[0].FileName)
	assert.Empty(t, c.Failures("u2"))

	log.mu.Lock()
	defer log.mu.Unlock()
	for _, v := range log.seen["bad.txt"] {
		assert.Less(t, v, 100.0)
	}
}

func TestUploadValidationRejectsBatch(t *testing.T) {
	repo := repositories.NewMemoryNodeRepository()
	blobs := newFaultyBlobStore()
	c := NewUploadCoordinator(repo, blobs, 10, nopLogger(), nil)
	ctx := context.Background()

	_, err := c.Submit(ctx, "u1", "/", []UploadFile{uploadFile("ok.txt", []byte("1"), ""), uploadFile("", []byte("1"), "")})
	assert.True(t, common.IsValidation(err))

	_, err = c.Submit(ctx, "u1", "/", []UploadFile{uploadFile("big.txt", make([]byte, 11), "")})
	assert.True(t, common.IsValidation(err))

	_, err = c.Submit(ctx, "u1", "bad-path", []UploadFile{uploadFile("ok.txt", []byte("1"), "")})
	assert.True(t, common.IsValidation(err))

	_, err = c.Submit(ctx, "u1", "/", nil)
	assert.True(t, common.IsValidation(err))

	assert.Empty(t, blobs.Keys())
}

func TestUploadCancel(t *testing.T) {
	repo := repositories.NewMemoryNodeRepository()
	blobs := &blockingBlobStore{MemoryStore: storage.NewMemoryStore(""), started: make(chan string, 1)}
	c := NewUploadCoordinator(repo, blobs, 0, nopLogger(), nil)

	batch, err := c.Submit(context.Background(), "u1", "/", []UploadFile{uploadFile("slow.bin", []byte("data"), "")})
	require.NoError(t, err)

	select {
	case <-blobs.started:
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not start")
	}
	assert.Len(t, c.Tasks("u1"), 1)
	assert.True(t, common.IsNotFound(c.Cancel("u2", batch.TaskIDs[0])))
	require.NoError(t, c.Cancel("u1", batch.TaskIDs[0]))

	results := batch.Wait()
	assert.True(t, common.IsTransfer(results[0].Err))
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Empty(t, c.Tasks("u1"))

	nodes, err := repo.Query(context.Background(), "u1", models.KindFile, "/")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
