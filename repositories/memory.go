package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nanodrive/models"
)

// MemoryNodeRepository keeps nodes in process memory. It backs STORE_BACKEND=memory
// and the service tests.
type MemoryNodeRepository struct {
	mu    sync.RWMutex
	nodes map[models.NodeKind]map[string]models.Node
	now   func() time.Time
}

func NewMemoryNodeRepository() *MemoryNodeRepository {
	return &MemoryNodeRepository{
		nodes: map[models.NodeKind]map[string]models.Node{
			models.KindFolder: {},
			models.KindFile:   {},
		},
		now: time.Now,
	}
}

func (r *MemoryNodeRepository) bucket(kind models.NodeKind) (map[string]models.Node, error) {
	if _, err := collectionName(kind); err != nil {
		return nil, err
	}
	return r.nodes[kind], nil
}

func (r *MemoryNodeRepository) Query(_ context.Context, ownerID string, kind models.NodeKind, path string) ([]models.Node, error) {
	return r.filter(kind, func(n models.Node) bool {
		return n.OwnerID == ownerID && n.Path == path
	})
}

func (r *MemoryNodeRepository) QueryTree(_ context.Context, ownerID string, kind models.NodeKind, dir string) ([]models.Node, error) {
	return r.filter(kind, func(n models.Node) bool {
		return n.OwnerID == ownerID && models.IsWithin(n.Path, dir)
	})
}

func (r *MemoryNodeRepository) filter(kind models.NodeKind, keep func(models.Node) bool) ([]models.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes, err := r.bucket(kind)
	if err != nil {
		return nil, err
	}
	result := make([]models.Node, 0)
	for _, n := range nodes {
		if keep(n) {
			result = append(result, n)
		}
	}
	return result, nil
}

func (r *MemoryNodeRepository) Get(_ context.Context, ownerID string, kind models.NodeKind, id string) (*models.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes, err := r.bucket(kind)
	if err != nil {
		return nil, err
	}
	n, ok := nodes[id]
	if !ok || n.OwnerID != ownerID {
		return nil, notFound(string(kind), id)
	}
	return &n, nil
}

func (r *MemoryNodeRepository) Insert(_ context.Context, node *models.Node) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes, err := r.bucket(node.Kind)
	if err != nil {
		return "", err
	}
	node.ID = uuid.NewString()
	node.LastModified = r.now().UTC()
	nodes[node.ID] = *node
	return node.ID, nil
}

func (r *MemoryNodeRepository) Update(_ context.Context, ownerID string, kind models.NodeKind, id string, update NodeUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes, err := r.bucket(kind)
	if err != nil {
		return err
	}
	n, ok := nodes[id]
	if !ok || n.OwnerID != ownerID {
		return notFound(string(kind), id)
	}
	if update.Name != nil {
		n.Name = *update.Name
	}
	if update.Path != nil {
		n.Path = *update.Path
	}
	n.LastModified = r.now().UTC()
	nodes[id] = n
	return nil
}

func (r *MemoryNodeRepository) Delete(_ context.Context, ownerID string, kind models.NodeKind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes, err := r.bucket(kind)
	if err != nil {
		return err
	}
	n, ok := nodes[id]
	if !ok || n.OwnerID != ownerID {
		return notFound(string(kind), id)
	}
	delete(nodes, id)
	return nil
}

type memoryRecord struct {
	record models.TransformRecord
	seq    int
}

type MemoryRecordRepository struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	seq     int
	now     func() time.Time
}

func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

func (r *MemoryRecordRepository) ListByOwner(_ context.Context, ownerID string) ([]models.TransformRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owned := make([]memoryRecord, 0)
	for _, rec := range r.records {
		if rec.record.OwnerID == ownerID {
			owned = append(owned, rec)
		}
	}
	// Insertion order breaks CreatedAt ties.
	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.record.CreatedAt.Equal(b.record.CreatedAt) {
			return a.record.CreatedAt.After(b.record.CreatedAt)
		}
		return a.seq > b.seq
	})

	result := make([]models.TransformRecord, 0, len(owned))
	for _, rec := range owned {
		result = append(result, rec.record)
	}
	return result, nil
}

func (r *MemoryRecordRepository) Get(_ context.Context, ownerID, id string) (*models.TransformRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok || rec.record.OwnerID != ownerID {
		return nil, notFound("transform record", id)
	}
	record := rec.record
	return &record, nil
}

func (r *MemoryRecordRepository) Insert(_ context.Context, record *models.TransformRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	record.ID = uuid.NewString()
	record.CreatedAt = r.now().UTC()
	r.records[record.ID] = memoryRecord{record: *record, seq: r.seq}
	return record.ID, nil
}

func (r *MemoryRecordRepository) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.record.OwnerID != ownerID {
		return notFound("transform record", id)
	}
	delete(r.records, id)
	return nil
}
