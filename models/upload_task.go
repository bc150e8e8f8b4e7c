package models

import (
	"time"
)

// UploadTask tracks one in-flight transfer. It is process-local and never persisted.
type UploadTask struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id"`
	OwnerID   string    `json:"-"`
	FileName  string    `json:"file_name"`
	Progress  float64   `json:"progress"`
	StartedAt time.Time `json:"started_at"`
}

type PipelineStage string

const (
	StagePending              PipelineStage = "pending"
	StageUploadingOriginal    PipelineStage = "uploading_original"
	StageTransforming         PipelineStage = "transforming"
	StageUploadingTransformed PipelineStage = "uploading_transformed"
	StagePersisting           PipelineStage = "persisting"
	StageCompleted            PipelineStage = "completed"
	StageFailed               PipelineStage = "failed"
)

// Terminal reports whether no further stage follows.
func (s PipelineStage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// PipelineStatus is a point-in-time view of one transform pipeline run.
type PipelineStatus struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"-"`
	FileName  string           `json:"file_name"`
	Prompt    string           `json:"prompt"`
	Mode      string           `json:"mode"`
	Stage     PipelineStage    `json:"stage"`
	Progress  float64          `json:"progress"`
	Error     string           `json:"error,omitempty"`
	Record    *TransformRecord `json:"record,omitempty"`
	StartedAt time.Time        `json:"started_at"`
}
