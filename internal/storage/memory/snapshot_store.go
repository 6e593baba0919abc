package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dexagent/internal/domain"
	"dexagent/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// Snapshots are kept in insertion order.
type SnapshotStore struct {
	mu   sync.RWMutex
	data []domain.PortfolioSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert appends a new snapshot.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.PortfolioSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, *snap)
	return nil
}

// GetLatest retrieves the most recent snapshot by timestamp.
func (s *SnapshotStore) GetLatest(_ context.Context) (*domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return nil, storage.ErrNotFound
	}

	latest := s.data[0]
	for _, snap := range s.data[1:] {
		if snap.Timestamp.After(latest.Timestamp) {
			latest = snap
		}
	}
	return &latest, nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *SnapshotStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PortfolioSnapshot
	for _, snap := range s.data {
		if snap.Timestamp.Before(start) || snap.Timestamp.After(end) {
			continue
		}
		clone := snap
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}
