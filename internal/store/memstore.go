package store

import (
	"context"
	"sort"
	"sync"

	"github.com/civicatlas/stagedesk/internal/models"
)

// MemStore is a thread-safe in-memory record store with the same
// compare-and-swap semantics as the Postgres store. It backs unit tests and
// local development without a database.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*models.StagedRecord
}

// NewMemStore initializes an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*models.StagedRecord)}
}

// Get retrieves a record by id.
func (m *MemStore) Get(ctx context.Context, id string) (*models.StagedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Insert stores a new record at version 1.
func (m *MemStore) Insert(ctx context.Context, rec *models.StagedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.ID]; ok {
		return ErrDuplicateID
	}
	rec.Version = 1
	m.records[rec.ID] = rec.Clone()
	return nil
}

// Update writes the record back only if the stored version matches the
// version the caller read. On success the version is bumped, both in the
// store and on the caller's copy.
func (m *MemStore) Update(ctx context.Context, rec *models.StagedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != rec.Version {
		return ErrVersionConflict
	}

	rec.Version++
	m.records[rec.ID] = rec.Clone()
	return nil
}

// List retrieves records matching the filter, oldest first, matching the
// created_at, id ordering of the Postgres store.
func (m *MemStore) List(ctx context.Context, filter Filter) ([]models.StagedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := []models.StagedRecord{}
	for _, rec := range m.records {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		records = append(records, *rec.Clone())
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}
