package models

import (
	"time"
)

// TransformRecord is the persisted result of one completed transform pipeline run.
type TransformRecord struct {
	ID                      string    `bson:"-" json:"id"`
	OwnerID                 string    `bson:"owner_id" json:"owner_id"`
	OriginalBlobLocation    string    `bson:"original_blob_location" json:"original_blob_location"`
	TransformedBlobLocation string    `bson:"transformed_blob_location" json:"transformed_blob_location"`
	OriginalDownloadURL     string    `bson:"original_download_url" json:"original_download_url"`
	TransformedDownloadURL  string    `bson:"transformed_download_url" json:"transformed_download_url"`
	OriginalFileName        string    `bson:"original_file_name" json:"original_file_name"`
	Prompt                  string    `bson:"prompt" json:"prompt"`
	Mode                    string    `bson:"mode" json:"mode"`
	CreatedAt               time.Time `bson:"created_at" json:"created_at"`
}
