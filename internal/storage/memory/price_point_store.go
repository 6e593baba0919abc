package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dexagent/internal/domain"
	"dexagent/internal/storage"
)

// PricePointStore is an in-memory implementation of storage.PricePointStore.
type PricePointStore struct {
	mu   sync.RWMutex
	data map[pricePointKey]*domain.PricePoint
}

type pricePointKey struct {
	tokenAddress string
	timestampMs  int64
}

// NewPricePointStore creates a new in-memory price point store.
func NewPricePointStore() *PricePointStore {
	return &PricePointStore{
		data: make(map[pricePointKey]*domain.PricePoint),
	}
}

var _ storage.PricePointStore = (*PricePointStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate
// (token_address, timestamp).
func (s *PricePointStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[pricePointKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.TokenAddress == "" {
			return storage.ErrInvalidInput
		}
		k := pricePointKey{p.TokenAddress, p.Timestamp.UnixMilli()}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, p := range points {
		clone := *p
		s.data[pricePointKey{p.TokenAddress, p.Timestamp.UnixMilli()}] = &clone
	}
	return nil
}

// GetByToken retrieves all points for a token, ordered by timestamp ASC.
func (s *PricePointStore) GetByToken(_ context.Context, tokenAddress string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.TokenAddress == tokenAddress {
			clone := *p
			result = append(result, &clone)
		}
	}

	sortPricePoints(result)
	return result, nil
}

// GetByTimeRange retrieves points for a token within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *PricePointStore) GetByTimeRange(_ context.Context, tokenAddress string, start, end time.Time) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.TokenAddress != tokenAddress {
			continue
		}
		if p.Timestamp.Before(start) || p.Timestamp.After(end) {
			continue
		}
		clone := *p
		result = append(result, &clone)
	}

	sortPricePoints(result)
	return result, nil
}

func sortPricePoints(points []*domain.PricePoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
}
