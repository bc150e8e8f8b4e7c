package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"nanodrive/common"
	"nanodrive/metrics"
	"nanodrive/models"
	"nanodrive/repositories"
	"nanodrive/storage"
	"nanodrive/utils"
)

// sniffLen is how much of a file mimetype needs to identify it.
const sniffLen = 3072

// maxRecentFailures bounds the per-process failure log shown to clients.
const maxRecentFailures = 100

// UploadFile is one file handed to the coordinator. The coordinator owns
// Content from Submit onward and closes it.
type UploadFile struct {
	Name     string
	Size     int64
	MimeType string
	Content  io.ReadCloser
}

type UploadResult struct {
	TaskID   string       `json:"task_id"`
	FileName string       `json:"file_name"`
	Node     *models.Node `json:"node,omitempty"`
	Err      error        `json:"-"`
}

// UploadFailure is the user-visible record of a failed transfer.
type UploadFailure struct {
	TaskID   string    `json:"task_id"`
	BatchID  string    `json:"batch_id"`
	OwnerID  string    `json:"-"`
	FileName string    `json:"file_name"`
	Message  string    `json:"message"`
	FailedAt time.Time `json:"failed_at"`
}

// Batch is one Submit call. Its transfers run independently.
type Batch struct {
	ID      string   `json:"batch_id"`
	TaskIDs []string `json:"task_ids"`

	wg      sync.WaitGroup
	results []UploadResult
}

// Wait blocks until every transfer in the batch has finished and returns
// the results in submission order.
func (b *Batch) Wait() []UploadResult {
	b.wg.Wait()
	return b.results
}

type UploadCoordinator struct {
	nodes       repositories.NodeRepository
	blobs       storage.BlobStore
	tasks       *TaskTable[models.UploadTask]
	logger      *zap.Logger
	metrics     *metrics.Metrics
	maxFileSize int64

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	failures []UploadFailure
}

func NewUploadCoordinator(nodes repositories.NodeRepository, blobs storage.BlobStore, maxFileSize int64, logger *zap.Logger, m *metrics.Metrics) *UploadCoordinator {
	return &UploadCoordinator{
		nodes: nodes,
		blobs: blobs,
		tasks: NewTaskTable(func(a, b models.UploadTask) bool {
			if !a.StartedAt.Equal(b.StartedAt) {
				return a.StartedAt.Before(b.StartedAt)
			}
			return a.ID < b.ID
		}),
		logger:      logger,
		metrics:     m,
		maxFileSize: maxFileSize,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Submit validates every file, then starts one transfer per file and returns
// without waiting. A validation failure rejects the whole batch before any I/O.
func (c *UploadCoordinator) Submit(ctx context.Context, ownerID, path string, files []UploadFile) (*Batch, error) {
	closeAll := func() {
		for _, f := range files {
			if f.Content != nil {
				f.Content.Close()
			}
		}
	}

	path, err := utils.NormalizePath(path)
	if err != nil {
		closeAll()
		return nil, err
	}
	if len(files) == 0 {
		return nil, common.Validation("upload files", path, "no files provided")
	}
	for _, f := range files {
		if err := utils.ValidateFileName(f.Name); err != nil {
			closeAll()
			return nil, err
		}
		if err := utils.ValidateFileSize(f.Name, f.Size, c.maxFileSize); err != nil {
			closeAll()
			return nil, err
		}
		if f.Content == nil {
			closeAll()
			return nil, common.Validation("upload file", f.Name, "file has no content")
		}
	}

	batch := &Batch{
		ID:      ulid.Make().String(),
		TaskIDs: make([]string, len(files)),
		results: make([]UploadResult, len(files)),
	}

	for i, f := range files {
		task := models.UploadTask{
			ID:        ulid.Make().String(),
			BatchID:   batch.ID,
			OwnerID:   ownerID,
			FileName:  f.Name,
			StartedAt: time.Now(),
		}
		taskCtx, cancel := context.WithCancel(ctx)

		c.mu.Lock()
		c.cancels[task.ID] = cancel
		c.mu.Unlock()
		c.tasks.Put(task.ID, task)

		batch.TaskIDs[i] = task.ID
		batch.wg.Add(1)
		go func(i int, task models.UploadTask, f UploadFile) {
			defer batch.wg.Done()
			defer cancel()
			node, err := c.transfer(taskCtx, task, path, f)
			batch.results[i] = UploadResult{TaskID: task.ID, FileName: f.Name, Node: node, Err: err}
		}(i, task, f)
	}

	c.logger.Info("Upload batch started", utils.Owner(ownerID), zap.String("batch", batch.ID), zap.String("path", path), zap.Int("files", len(files)))
	return batch, nil
}

func (c *UploadCoordinator) transfer(ctx context.Context, task models.UploadTask, path string, f UploadFile) (*models.Node, error) {
	defer f.Content.Close()
	defer func() {
		c.mu.Lock()
		delete(c.cancels, task.ID)
		c.mu.Unlock()
		c.tasks.Remove(task.ID)
	}()

	c.metrics.UploadStarted()
	node, err := c.store(ctx, task, path, f)
	c.metrics.UploadFinished(f.Size, err)
	if err != nil {
		c.recordFailure(task, err)
		return nil, err
	}
	return node, nil
}

func (c *UploadCoordinator) store(ctx context.Context, task models.UploadTask, path string, f UploadFile) (*models.Node, error) {
	const op = "upload file"

	content, mimeType, err := detectMimeType(f.Content, f.MimeType)
	if err != nil {
		return nil, common.Transfer(op, f.Name, err)
	}

	key := storage.FileKey(task.OwnerID, f.Name)
	err = c.blobs.Put(ctx, key, content, f.Size, mimeType, func(done, total int64) {
		if total <= 0 {
			return
		}
		c.advance(task.ID, float64(done)/float64(total)*100)
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, common.Transfer(op, f.Name, err)
	}

	url, err := c.blobs.ResolveURL(ctx, key)
	if err != nil {
		return nil, common.Transfer(op, f.Name, err)
	}

	node := models.NewFile(task.OwnerID, path, f.Name, f.Size, mimeType, key, url)
	if _, err := c.nodes.Insert(ctx, &node); err != nil {
		return nil, common.Repository(op, f.Name, err)
	}

	c.tasks.Update(task.ID, func(t *models.UploadTask) bool {
		t.Progress = 100
		return true
	})
	c.logger.Info("File uploaded", utils.Owner(task.OwnerID), zap.String("task", task.ID), zap.String("name", f.Name), zap.String("blob", key), zap.Int64("size", f.Size))
	return &node, nil
}

// advance raises a task's progress. Values only grow, and 100 is reserved for
// a transfer whose node has been recorded.
func (c *UploadCoordinator) advance(taskID string, pct float64) {
	if pct > 99 {
		pct = 99
	}
	c.tasks.Update(taskID, func(t *models.UploadTask) bool {
		if pct <= t.Progress {
			return false
		}
		t.Progress = pct
		return true
	})
}

func (c *UploadCoordinator) recordFailure(task models.UploadTask, err error) {
	c.logger.Error("Upload failed", utils.Owner(task.OwnerID), zap.String("task", task.ID), zap.String("name", task.FileName), zap.Error(err))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, UploadFailure{
		TaskID:   task.ID,
		BatchID:  task.BatchID,
		OwnerID:  task.OwnerID,
		FileName: task.FileName,
		Message:  err.Error(),
		FailedAt: time.Now(),
	})
	if len(c.failures) > maxRecentFailures {
		c.failures = c.failures[len(c.failures)-maxRecentFailures:]
	}
}

// Cancel aborts an in-flight transfer. Its task is removed and its result
// carries the cancellation error.
func (c *UploadCoordinator) Cancel(ownerID, taskID string) error {
	task, ok := c.tasks.Get(taskID)
	if !ok || task.OwnerID != ownerID {
		return common.Repository("cancel upload", taskID, common.ErrNotFound)
	}

	c.mu.Lock()
	cancel, ok := c.cancels[taskID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// Tasks returns the owner's in-flight transfers, oldest first.
func (c *UploadCoordinator) Tasks(ownerID string) []models.UploadTask {
	return c.tasks.Snapshot(ownedTask(ownerID))
}

// Subscribe streams snapshots of the owner's in-flight transfers.
func (c *UploadCoordinator) Subscribe(ownerID string) (<-chan []models.UploadTask, func()) {
	return c.tasks.Subscribe(ownedTask(ownerID))
}

// Failures returns the owner's recent failed transfers, newest last.
func (c *UploadCoordinator) Failures(ownerID string) []UploadFailure {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]UploadFailure, 0)
	for _, f := range c.failures {
		if f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	return out
}

func ownedTask(ownerID string) func(models.UploadTask) bool {
	return func(t models.UploadTask) bool { return t.OwnerID == ownerID }
}

// detectMimeType keeps a declared specific type and otherwise sniffs the
// leading bytes, returning a reader that still yields the whole content.
func detectMimeType(r io.Reader, declared string) (io.Reader, string, error) {
	if declared != "" && declared != "application/octet-stream" {
		return r, declared, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), r), mimetype.Detect(head).String(), nil
}
