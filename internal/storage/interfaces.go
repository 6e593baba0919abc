package storage

import (
	"context"
	"time"

	"dexagent/internal/domain"
)

// TradeStore provides access to the executed trade log.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetByToken retrieves all trades for a token address, ordered by timestamp ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.Trade, error)

	// GetByTimeRange retrieves trades within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Trade, error)
}

// SnapshotStore provides access to persisted portfolio snapshots.
type SnapshotStore interface {
	// Insert appends a new snapshot.
	Insert(ctx context.Context, s *domain.PortfolioSnapshot) error

	// GetLatest retrieves the most recent snapshot. Returns ErrNotFound when
	// no snapshot has been persisted yet.
	GetLatest(ctx context.Context) (*domain.PortfolioSnapshot, error)

	// GetByTimeRange retrieves snapshots within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.PortfolioSnapshot, error)
}

// PricePointStore provides access to the archived price point history.
type PricePointStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate
	// (token_address, timestamp).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByToken retrieves all points for a token, ordered by timestamp ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.PricePoint, error)

	// GetByTimeRange retrieves points for a token within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, tokenAddress string, start, end time.Time) ([]*domain.PricePoint, error)
}
