package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nanodrive/metrics"
	"nanodrive/models"
	"nanodrive/repositories"
	"nanodrive/storage"
	"nanodrive/utils"
)

// OrphanSweeper removes blobs that no file node or transform record points
// at. Failed uploads, flat-mode folder deletes and partial pipeline runs all
// leave such blobs behind.
type OrphanSweeper struct {
	nodes    repositories.NodeRepository
	records  repositories.RecordRepository
	blobs    storage.BlobStore
	interval time.Duration
	grace    time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewOrphanSweeper(nodes repositories.NodeRepository, records repositories.RecordRepository, blobs storage.BlobStore, interval, grace time.Duration, logger *zap.Logger, m *metrics.Metrics) *OrphanSweeper {
	return &OrphanSweeper{
		nodes:    nodes,
		records:  records,
		blobs:    blobs,
		interval: interval,
		grace:    grace,
		logger:   logger.Named("orphan_sweeper"),
		metrics:  m,
		now:      time.Now,
	}
}

// Start sweeps once immediately and then every interval until ctx is done.
func (s *OrphanSweeper) Start(ctx context.Context) {
	s.logger.Info("Starting orphan sweeper", zap.Duration("interval", s.interval), zap.Duration("grace", s.grace))

	s.runSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Orphan sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *OrphanSweeper) runSweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	removed, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("Orphan sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("Orphan sweep completed", zap.Int("removed", removed))
}

// Sweep deletes every unreferenced blob older than the grace period and
// returns how many went. Blobs it cannot attribute to an owner are left alone.
func (s *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.grace)

	var candidates []storage.BlobInfo
	for _, prefix := range []string{storage.FilesPrefix, storage.TransformsPrefix} {
		blobs, err := s.blobs.List(ctx, prefix)
		if err != nil {
			return 0, fmt.Errorf("failed to list blobs under %s: %w", prefix, err)
		}
		for _, blob := range blobs {
			if blob.LastModified.Before(cutoff) {
				candidates = append(candidates, blob)
			}
		}
	}

	referenced := make(map[string]map[string]bool)
	removed := 0
	for _, blob := range candidates {
		owner, ok := storage.OwnerOf(blob.Key)
		if !ok {
			continue
		}
		keys, ok := referenced[owner]
		if !ok {
			var err error
			if keys, err = s.referencedKeys(ctx, owner); err != nil {
				return removed, err
			}
			referenced[owner] = keys
		}
		if keys[blob.Key] {
			continue
		}

		if err := s.blobs.Delete(ctx, blob.Key); err != nil {
			s.logger.Warn("Failed to delete orphaned blob", utils.Owner(owner), zap.String("blob", blob.Key), zap.Error(err))
			continue
		}
		removed++
		s.logger.Debug("Deleted orphaned blob", utils.Owner(owner), zap.String("blob", blob.Key), zap.Int64("size", blob.Size))
	}

	s.metrics.Swept(removed)
	return removed, nil
}

func (s *OrphanSweeper) referencedKeys(ctx context.Context, ownerID string) (map[string]bool, error) {
	keys := make(map[string]bool)

	files, err := s.nodes.QueryTree(ctx, ownerID, models.KindFile, models.RootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of %s: %w", ownerID, err)
	}
	for _, f := range files {
		keys[f.BlobLocation] = true
	}

	records, err := s.records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transform records of %s: %w", ownerID, err)
	}
	for _, r := range records {
		keys[r.OriginalBlobLocation] = true
		keys[r.TransformedBlobLocation] = true
	}
	return keys, nil
}
