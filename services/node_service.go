package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"nanodrive/common"
	"nanodrive/metrics"
	"nanodrive/models"
	"nanodrive/repositories"
	"nanodrive/storage"
	"nanodrive/utils"
)

// HierarchyMode decides whether folder rename and delete reach descendants.
type HierarchyMode string

const (
	// HierarchyFlat touches only the folder's own record: children keep their
	// old path after a rename and survive a delete.
	HierarchyFlat HierarchyMode = "flat"
	// HierarchyCascade rewrites descendant paths on rename and removes
	// descendants (with their blobs) on delete.
	HierarchyCascade HierarchyMode = "cascade"
)

func ParseHierarchyMode(s string) (HierarchyMode, error) {
	switch HierarchyMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", HierarchyFlat:
		return HierarchyFlat, nil
	case HierarchyCascade:
		return HierarchyCascade, nil
	default:
		return "", fmt.Errorf("unknown hierarchy mode %q", s)
	}
}

type NodeService struct {
	nodes   repositories.NodeRepository
	blobs   storage.BlobStore
	mode    HierarchyMode
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewNodeService(nodes repositories.NodeRepository, blobs storage.BlobStore, mode HierarchyMode, logger *zap.Logger, m *metrics.Metrics) *NodeService {
	return &NodeService{
		nodes:   nodes,
		blobs:   blobs,
		mode:    mode,
		logger:  logger,
		metrics: m,
	}
}

func (s *NodeService) Mode() HierarchyMode { return s.mode }

// CreateFolder inserts a folder under path. Names are not checked for
// uniqueness; two folders with the same name may coexist.
func (s *NodeService) CreateFolder(ctx context.Context, ownerID, path, name string) (*models.Node, error) {
	if err := utils.ValidateNodeName("create folder", name); err != nil {
		return nil, err
	}
	path, err := utils.NormalizePath(path)
	if err != nil {
		return nil, err
	}

	folder := models.NewFolder(ownerID, path, name)
	_, err = s.nodes.Insert(ctx, &folder)
	s.metrics.NodeOp("create", string(models.KindFolder), err)
	if err != nil {
		s.logger.Error("Failed to create folder", utils.Owner(ownerID), zap.String("path", path), zap.String("name", name), zap.Error(err))
		return nil, common.Repository("create folder", name, err)
	}

	s.logger.Info("Folder created", utils.Owner(ownerID), zap.String("id", folder.ID), zap.String("path", folder.ChildPath()))
	return &folder, nil
}

func (s *NodeService) GetNode(ctx context.Context, ownerID string, kind models.NodeKind, id string) (*models.Node, error) {
	node, err := s.nodes.Get(ctx, ownerID, kind, id)
	if err != nil {
		return nil, common.Repository("get "+string(kind), id, err)
	}
	return node, nil
}

// RenameByID validates newName, loads the node and renames it.
func (s *NodeService) RenameByID(ctx context.Context, ownerID string, kind models.NodeKind, id, newName string) (*models.Node, error) {
	if err := utils.ValidateNodeName("rename "+string(kind), newName); err != nil {
		return nil, err
	}
	node, err := s.GetNode(ctx, ownerID, kind, id)
	if err != nil {
		return nil, err
	}
	return s.Rename(ctx, ownerID, *node, newName)
}

// Rename changes the node's name in place; its id and path are kept. In
// cascade mode a folder's descendants are moved to the new path afterwards,
// one record at a time, stopping at the first failure.
func (s *NodeService) Rename(ctx context.Context, ownerID string, node models.Node, newName string) (*models.Node, error) {
	op := "rename " + string(node.Kind)
	if err := utils.ValidateNodeName(op, newName); err != nil {
		return nil, err
	}

	err := s.nodes.Update(ctx, ownerID, node.Kind, node.ID, repositories.NodeUpdate{Name: &newName})
	s.metrics.NodeOp("rename", string(node.Kind), err)
	if err != nil {
		s.logger.Error("Failed to rename node", utils.Owner(ownerID), zap.String("id", node.ID), zap.String("name", node.Name), zap.Error(err))
		return nil, common.Repository(op, node.Name, err)
	}

	if node.IsFolder() && s.mode == HierarchyCascade && newName != node.Name {
		oldDir := node.ChildPath()
		newDir := models.JoinPath(node.Path, newName)
		if err := s.moveDescendants(ctx, ownerID, oldDir, newDir); err != nil {
			return nil, err
		}
	}

	renamed, err := s.nodes.Get(ctx, ownerID, node.Kind, node.ID)
	if err != nil {
		return nil, common.Repository(op, newName, err)
	}
	s.logger.Info("Node renamed", utils.Owner(ownerID), zap.String("id", node.ID), zap.String("from", node.Name), zap.String("to", newName))
	return renamed, nil
}

func (s *NodeService) moveDescendants(ctx context.Context, ownerID, oldDir, newDir string) error {
	for _, kind := range []models.NodeKind{models.KindFolder, models.KindFile} {
		descendants, err := s.nodes.QueryTree(ctx, ownerID, kind, oldDir)
		if err != nil {
			return common.Repository("move descendants", oldDir, err)
		}
		for _, d := range descendants {
			newPath := models.Rebase(d.Path, oldDir, newDir)
			if err := s.nodes.Update(ctx, ownerID, kind, d.ID, repositories.NodeUpdate{Path: &newPath}); err != nil {
				s.logger.Error("Failed to move descendant", utils.Owner(ownerID), zap.String("id", d.ID), zap.String("path", d.Path), zap.Error(err))
				return common.Repository("move descendant", d.Name, err)
			}
		}
	}
	return nil
}

// DeleteByID loads and deletes a node.
func (s *NodeService) DeleteByID(ctx context.Context, ownerID string, kind models.NodeKind, id string) error {
	node, err := s.GetNode(ctx, ownerID, kind, id)
	if err != nil {
		return err
	}
	return s.Delete(ctx, ownerID, *node)
}

// Delete removes a node. A file's blob is deleted first; a blob failure is
// logged and the document is removed anyway. Folders follow the hierarchy mode.
func (s *NodeService) Delete(ctx context.Context, ownerID string, node models.Node) error {
	var err error
	switch {
	case node.IsFile():
		err = s.deleteFile(ctx, ownerID, node)
	case s.mode == HierarchyCascade:
		err = s.deleteFolderTree(ctx, ownerID, node)
	default:
		err = s.deleteDocument(ctx, ownerID, node)
	}
	s.metrics.NodeOp("delete", string(node.Kind), err)
	if err == nil {
		s.logger.Info("Node deleted", utils.Owner(ownerID), zap.String("id", node.ID), zap.String("kind", string(node.Kind)), zap.String("name", node.Name))
	}
	return err
}

func (s *NodeService) deleteFile(ctx context.Context, ownerID string, node models.Node) error {
	if node.BlobLocation != "" {
		if err := s.blobs.Delete(ctx, node.BlobLocation); err != nil {
			s.logger.Warn("Failed to delete blob, removing document anyway",
				utils.Owner(ownerID), zap.String("blob", node.BlobLocation), zap.Error(err))
		}
	}
	return s.deleteDocument(ctx, ownerID, node)
}

func (s *NodeService) deleteDocument(ctx context.Context, ownerID string, node models.Node) error {
	if err := s.nodes.Delete(ctx, ownerID, node.Kind, node.ID); err != nil {
		s.logger.Error("Failed to delete node", utils.Owner(ownerID), zap.String("id", node.ID), zap.Error(err))
		return common.Repository("delete "+string(node.Kind), node.Name, err)
	}
	return nil
}

// deleteFolderTree removes files below the folder, then sub-folders, then the
// folder itself. It stops at the first document failure.
func (s *NodeService) deleteFolderTree(ctx context.Context, ownerID string, folder models.Node) error {
	dir := folder.ChildPath()

	files, err := s.nodes.QueryTree(ctx, ownerID, models.KindFile, dir)
	if err != nil {
		return common.Repository("delete folder", folder.Name, err)
	}
	for _, f := range files {
		if err := s.deleteFile(ctx, ownerID, f); err != nil {
			return err
		}
	}

	folders, err := s.nodes.QueryTree(ctx, ownerID, models.KindFolder, dir)
	if err != nil {
		return common.Repository("delete folder", folder.Name, err)
	}
	for _, f := range folders {
		if err := s.deleteDocument(ctx, ownerID, f); err != nil {
			return err
		}
	}

	return s.deleteDocument(ctx, ownerID, folder)
}

// OpenFile returns the file record and a reader over its blob.
func (s *NodeService) OpenFile(ctx context.Context, ownerID, id string) (*models.Node, io.ReadCloser, error) {
	node, err := s.GetNode(ctx, ownerID, models.KindFile, id)
	if err != nil {
		return nil, nil, err
	}
	if node.BlobLocation == "" {
		return nil, nil, common.Transfer("download file", node.Name, errors.New("file has no blob"))
	}

	rc, err := s.blobs.Open(ctx, node.BlobLocation)
	if err != nil {
		s.logger.Error("Failed to open blob", utils.Owner(ownerID), zap.String("blob", node.BlobLocation), zap.Error(err))
		return nil, nil, common.Transfer("download file", node.Name, err)
	}
	return node, rc, nil
}

// OpenBlob opens a stored blob by key. Keys owned by someone else read as
// missing.
func (s *NodeService) OpenBlob(ctx context.Context, ownerID, key string) (io.ReadCloser, error) {
	if owner, ok := storage.OwnerOf(key); !ok || owner != ownerID {
		return nil, &common.Error{Kind: common.KindNotFound, Op: "open blob", Target: key, Err: common.ErrNotFound}
	}

	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, &common.Error{Kind: common.KindNotFound, Op: "open blob", Target: key, Err: err}
		}
		s.logger.Error("Failed to open blob", utils.Owner(ownerID), zap.String("blob", key), zap.Error(err))
		return nil, common.Transfer("open blob", key, err)
	}
	return rc, nil
}
