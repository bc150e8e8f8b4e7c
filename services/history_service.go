package services

import (
	"context"

	"go.uber.org/zap"

	"nanodrive/common"
	"nanodrive/models"
	"nanodrive/repositories"
	"nanodrive/storage"
	"nanodrive/utils"
)

// HistoryService is the gallery of completed transform runs.
type HistoryService struct {
	records repositories.RecordRepository
	blobs   storage.BlobStore
	logger  *zap.Logger
}

func NewHistoryService(records repositories.RecordRepository, blobs storage.BlobStore, logger *zap.Logger) *HistoryService {
	return &HistoryService{records: records, blobs: blobs, logger: logger}
}

// List returns the owner's records, newest first.
func (s *HistoryService) List(ctx context.Context, ownerID string) ([]models.TransformRecord, error) {
	records, err := s.records.ListByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("Failed to list history", utils.Owner(ownerID), zap.Error(err))
		return nil, common.Repository("list history", ownerID, err)
	}
	return records, nil
}

// Delete removes the record, then the original blob, then the transformed
// blob. It stops at the first failure and leaves earlier steps in place.
func (s *HistoryService) Delete(ctx context.Context, ownerID, id string) error {
	record, err := s.records.Get(ctx, ownerID, id)
	if err != nil {
		return common.Repository("delete history item", id, err)
	}

	if err := s.records.Delete(ctx, ownerID, id); err != nil {
		s.logger.Error("Failed to delete transform record", utils.Owner(ownerID), zap.String("id", id), zap.Error(err))
		return common.Repository("delete history item", record.OriginalFileName, err)
	}
	for _, key := range []string{record.OriginalBlobLocation, record.TransformedBlobLocation} {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Error("Failed to delete transform blob", utils.Owner(ownerID), zap.String("id", id), zap.String("blob", key), zap.Error(err))
			return common.Transfer("delete history item", record.OriginalFileName, err)
		}
	}

	s.logger.Info("History item deleted", utils.Owner(ownerID), zap.String("id", id))
	return nil
}
