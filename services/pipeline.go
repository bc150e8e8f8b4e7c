package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
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
	"nanodrive/transform"
	"nanodrive/utils"
)

// finishedRunTTL is how long terminal runs stay queryable.
const finishedRunTTL = time.Hour

type PipelineRequest struct {
	OwnerID  string
	FileName string
	MimeType string
	Data     []byte
	Prompt   string
	Mode     transform.Mode
}

// PipelineRun is a handle on one started run.
type PipelineRun struct {
	ID   string
	done chan struct{}

	mu     sync.Mutex
	status models.PipelineStatus
	err    error
}

// Wait blocks until the run is terminal and returns its final status and first error.
func (r *PipelineRun) Wait() (models.PipelineStatus, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.err
}

// Done is closed once the run is terminal.
func (r *PipelineRun) Done() <-chan struct{} { return r.done }

// PipelineExecutor runs upload, transform, upload, persist for each submission.
// Runs are independent and uncapped; stages inside a run are strictly ordered
// and never retried.
type PipelineExecutor struct {
	blobs     storage.BlobStore
	records   repositories.RecordRepository
	selector  *transform.Selector
	runs      *TaskTable[models.PipelineStatus]
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	listeners []func(models.PipelineStatus)
}

func NewPipelineExecutor(blobs storage.BlobStore, records repositories.RecordRepository, selector *transform.Selector, logger *zap.Logger, m *metrics.Metrics) *PipelineExecutor {
	return &PipelineExecutor{
		blobs:    blobs,
		records:  records,
		selector: selector,
		runs: NewTaskTable(func(a, b models.PipelineStatus) bool {
			if !a.StartedAt.Equal(b.StartedAt) {
				return a.StartedAt.After(b.StartedAt)
			}
			return a.ID > b.ID
		}),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// OnUpdate registers fn to observe every status change of every run. It must
// be called before the first Submit.
func (e *PipelineExecutor) OnUpdate(fn func(models.PipelineStatus)) {
	e.listeners = append(e.listeners, fn)
}

func (e *PipelineExecutor) validate(req *PipelineRequest) (transform.Transformer, error) {
	const op = "transform image"

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, common.Validation(op, req.FileName, "prompt cannot be empty")
	}
	if err := utils.ValidateFileName(req.FileName); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, common.Validation(op, req.FileName, "image is empty")
	}
	if req.MimeType == "" || req.MimeType == "application/octet-stream" {
		req.MimeType = mimetype.Detect(req.Data).String()
	}
	if !strings.HasPrefix(req.MimeType, "image/") {
		return nil, common.Validation(op, req.FileName, "only image files can be transformed")
	}
	return e.selector.For(req.Mode)
}

// Submit validates the request and starts the run in the background. The run
// is detached from ctx's cancellation: once started it runs to completion or failure.
func (e *PipelineExecutor) Submit(ctx context.Context, req PipelineRequest) (*PipelineRun, error) {
	transformer, err := e.validate(&req)
	if err != nil {
		return nil, err
	}
	e.pruneFinished()

	run := e.start(req)
	go e.execute(context.WithoutCancel(ctx), run, req, transformer)
	return run, nil
}

// Run is Submit followed by Wait.
func (e *PipelineExecutor) Run(ctx context.Context, req PipelineRequest) (models.PipelineStatus, error) {
	run, err := e.Submit(ctx, req)
	if err != nil {
		return models.PipelineStatus{}, err
	}
	return run.Wait()
}

func (e *PipelineExecutor) start(req PipelineRequest) *PipelineRun {
	status := models.PipelineStatus{
		ID:        ulid.Make().String(),
		OwnerID:   req.OwnerID,
		FileName:  req.FileName,
		Prompt:    req.Prompt,
		Mode:      string(req.Mode),
		Stage:     models.StagePending,
		StartedAt: e.now(),
	}
	run := &PipelineRun{ID: status.ID, done: make(chan struct{}), status: status}
	e.runs.Put(run.ID, status)
	e.notify(status)
	return run
}

func (e *PipelineExecutor) execute(ctx context.Context, run *PipelineRun, req PipelineRequest, transformer transform.Transformer) {
	defer close(run.done)

	e.metrics.PipelineStarted()
	logger := e.logger.With(utils.Owner(req.OwnerID), zap.String("run", run.ID), zap.String("file", req.FileName))
	logger.Info("Pipeline started", zap.String("mode", string(req.Mode)))

	record, err := e.stages(ctx, run, req, transformer, logger)

	e.metrics.PipelineFinished(string(req.Mode), err)
	if err != nil {
		logger.Error("Pipeline failed", zap.Error(err))
		e.set(run, func(s *models.PipelineStatus) {
			s.Stage = models.StageFailed
			s.Error = err.Error()
		}, err)
		return
	}

	logger.Info("Pipeline completed", zap.String("record", record.ID))
	e.set(run, func(s *models.PipelineStatus) {
		s.Stage = models.StageCompleted
		s.Progress = 100
		s.Record = record
	}, nil)
}

func (e *PipelineExecutor) stages(ctx context.Context, run *PipelineRun, req PipelineRequest, transformer transform.Transformer, logger *zap.Logger) (*models.TransformRecord, error) {
	originalKey, transformedKey := storage.TransformKeys(req.OwnerID, e.now(), run.ID, req.FileName)

	// 1. original: 0 -> 50
	e.enter(run, models.StageUploadingOriginal)
	started := time.Now()
	originalURL, err := e.upload(ctx, run, originalKey, req.Data, req.MimeType, 0, 50)
	e.metrics.ObserveStage(string(models.StageUploadingOriginal), time.Since(started))
	if err != nil {
		return nil, common.Transfer("upload original", req.FileName, err)
	}
	e.progress(run, 50)

	// 2. transform: held at 50. The original blob stays if this fails.
	e.enter(run, models.StageTransforming)
	started = time.Now()
	out, err := transformer.Transform(ctx, transform.Request{
		Source: transform.Image{Data: req.Data, MimeType: req.MimeType},
		Prompt: req.Prompt,
	})
	e.metrics.ObserveStage(string(models.StageTransforming), time.Since(started))
	if err != nil {
		if common.KindOf(err) == "" {
			err = common.Transform("transform image", req.FileName, err)
		}
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, common.Transform("transform image", req.FileName, errors.New("transform returned no usable media"))
	}
	if out.MimeType == "" {
		out.MimeType = mimetype.Detect(out.Data).String()
	}
	logger.Debug("Transform finished", zap.Int("bytes", len(out.Data)), zap.String("mime", out.MimeType))

	// 3. transformed: 50 -> 100
	e.enter(run, models.StageUploadingTransformed)
	started = time.Now()
	transformedURL, err := e.upload(ctx, run, transformedKey, out.Data, out.MimeType, 50, 99)
	e.metrics.ObserveStage(string(models.StageUploadingTransformed), time.Since(started))
	if err != nil {
		return nil, common.Transfer("upload transformed", req.FileName, err)
	}

	// 4. persist. Both blobs stay if this fails.
	e.enter(run, models.StagePersisting)
	started = time.Now()
	record := &models.TransformRecord{
		OwnerID:                 req.OwnerID,
		OriginalBlobLocation:    originalKey,
		TransformedBlobLocation: transformedKey,
		OriginalDownloadURL:     originalURL,
		TransformedDownloadURL:  transformedURL,
		OriginalFileName:        req.FileName,
		Prompt:                  req.Prompt,
		Mode:                    string(req.Mode),
	}
	_, err = e.records.Insert(ctx, record)
	e.metrics.ObserveStage(string(models.StagePersisting), time.Since(started))
	if err != nil {
		return nil, common.Repository("save transform record", req.FileName, err)
	}
	return record, nil
}

// upload puts data under key while mapping byte progress onto [from, to].
func (e *PipelineExecutor) upload(ctx context.Context, run *PipelineRun, key string, data []byte, mimeType string, from, to float64) (string, error) {
	total := int64(len(data))
	err := e.blobs.Put(ctx, key, bytes.NewReader(data), total, mimeType, func(done, size int64) {
		if size <= 0 {
			return
		}
		e.progress(run, from+(to-from)*float64(done)/float64(size))
	})
	if err != nil {
		return "", err
	}
	return e.blobs.ResolveURL(ctx, key)
}

func (e *PipelineExecutor) enter(run *PipelineRun, stage models.PipelineStage) {
	e.set(run, func(s *models.PipelineStatus) { s.Stage = stage }, nil)
}

// progress only ever raises the run's progress.
func (e *PipelineExecutor) progress(run *PipelineRun, pct float64) {
	run.mu.Lock()
	if pct <= run.status.Progress {
		run.mu.Unlock()
		return
	}
	run.mu.Unlock()
	e.set(run, func(s *models.PipelineStatus) {
		if pct > s.Progress {
			s.Progress = pct
		}
	}, nil)
}

func (e *PipelineExecutor) set(run *PipelineRun, fn func(*models.PipelineStatus), err error) {
	run.mu.Lock()
	fn(&run.status)
	if err != nil && run.err == nil {
		run.err = err
	}
	status := run.status
	run.mu.Unlock()

	e.runs.Put(run.ID, status)
	e.notify(status)
}

func (e *PipelineExecutor) notify(status models.PipelineStatus) {
	for _, fn := range e.listeners {
		fn(status)
	}
}

func (e *PipelineExecutor) pruneFinished() {
	cutoff := e.now().Add(-finishedRunTTL)
	e.runs.RemoveWhere(func(s models.PipelineStatus) bool {
		return s.Stage.Terminal() && s.StartedAt.Before(cutoff)
	})
}

// Status returns the latest state of one of the owner's runs.
func (e *PipelineExecutor) Status(ownerID, runID string) (models.PipelineStatus, error) {
	status, ok := e.runs.Get(runID)
	if !ok || status.OwnerID != ownerID {
		return models.PipelineStatus{}, common.Repository("get transform run", runID, common.ErrNotFound)
	}
	return status, nil
}

// Runs returns the owner's runs, newest first.
func (e *PipelineExecutor) Runs(ownerID string) []models.PipelineStatus {
	return e.runs.Snapshot(ownedRun(ownerID))
}

// Subscribe streams snapshots of the owner's runs.
func (e *PipelineExecutor) Subscribe(ownerID string) (<-chan []models.PipelineStatus, func()) {
	return e.runs.Subscribe(ownedRun(ownerID))
}

func ownedRun(ownerID string) func(models.PipelineStatus) bool {
	return func(s models.PipelineStatus) bool { return s.OwnerID == ownerID }
}
