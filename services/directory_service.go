package services

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"nanodrive/common"
	"nanodrive/models"
	"nanodrive/repositories"
	"nanodrive/utils"
)

// DirectoryListing is one directory view: its children and the breadcrumb trail leading to it.
type DirectoryListing struct {
	Path        string        `json:"path"`
	Breadcrumbs []Breadcrumb  `json:"breadcrumbs"`
	Nodes       []models.Node `json:"nodes"`
}

type DirectoryService struct {
	nodes  repositories.NodeRepository
	logger *zap.Logger

	// collate.Collator keeps internal buffers and is not safe for concurrent use.
	mu       sync.Mutex
	collator *collate.Collator
}

func NewDirectoryService(nodes repositories.NodeRepository, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{
		nodes:    nodes,
		logger:   logger,
		collator: collate.New(language.Und),
	}
}

// List returns the folders and files whose path equals path exactly, folders
// first and each group in collation order. Every call re-queries the store.
func (s *DirectoryService) List(ctx context.Context, ownerID, path string) ([]models.Node, error) {
	var folders, files []models.Node

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		folders, err = s.nodes.Query(gctx, ownerID, models.KindFolder, path)
		return err
	})
	g.Go(func() error {
		var err error
		files, err = s.nodes.Query(gctx, ownerID, models.KindFile, path)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to list directory", utils.Owner(ownerID), zap.String("path", path), zap.Error(err))
		return nil, common.Repository("list directory", path, err)
	}

	nodes := make([]models.Node, 0, len(folders)+len(files))
	nodes = append(nodes, folders...)
	nodes = append(nodes, files...)
	s.sortNodes(nodes)
	return nodes, nil
}

// Listing is List plus the breadcrumb trail for path.
func (s *DirectoryService) Listing(ctx context.Context, ownerID, path string) (*DirectoryListing, error) {
	nav, err := NewNavigatorAt(path)
	if err != nil {
		return nil, err
	}
	nodes, err := s.List(ctx, ownerID, nav.Path())
	if err != nil {
		return nil, err
	}
	return &DirectoryListing{Path: nav.Path(), Breadcrumbs: nav.Breadcrumbs(), Nodes: nodes}, nil
}

func (s *DirectoryService) sortNodes(nodes []models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		if c := s.collator.CompareString(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}
