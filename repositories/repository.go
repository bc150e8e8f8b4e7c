// Package repositories is the document-store layer: two flat node collections
// (folders and files) filtered by an opaque path string, plus the transform
// record collection. Implementations assign IDs and timestamps themselves so
// the store stays the clock authority.
package repositories

import (
	"context"
	"fmt"

	"nanodrive/common"
	"nanodrive/models"
)

// NodeUpdate lists the mutable node fields; nil fields are left untouched.
// Every update also refreshes LastModified.
type NodeUpdate struct {
	Name *string
	Path *string
}

type NodeRepository interface {
	// Query returns the nodes of one kind whose Path equals path exactly.
	Query(ctx context.Context, ownerID string, kind models.NodeKind, path string) ([]models.Node, error)
	// QueryTree returns the nodes of one kind whose Path is dir or lies below it.
	QueryTree(ctx context.Context, ownerID string, kind models.NodeKind, dir string) ([]models.Node, error)
	Get(ctx context.Context, ownerID string, kind models.NodeKind, id string) (*models.Node, error)
	// Insert stores node, filling in ID and LastModified, and returns the new ID.
	Insert(ctx context.Context, node *models.Node) (string, error)
	Update(ctx context.Context, ownerID string, kind models.NodeKind, id string, update NodeUpdate) error
	Delete(ctx context.Context, ownerID string, kind models.NodeKind, id string) error
}

type RecordRepository interface {
	// ListByOwner returns records newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]models.TransformRecord, error)
	Get(ctx context.Context, ownerID, id string) (*models.TransformRecord, error)
	// Insert stores record, filling in ID and CreatedAt, and returns the new ID.
	Insert(ctx context.Context, record *models.TransformRecord) (string, error)
	Delete(ctx context.Context, ownerID, id string) error
}

func collectionName(kind models.NodeKind) (string, error) {
	switch kind {
	case models.KindFolder:
		return "folders", nil
	case models.KindFile:
		return "files", nil
	default:
		return "", fmt.Errorf("unknown node kind %q", kind)
	}
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, common.ErrNotFound)
}
