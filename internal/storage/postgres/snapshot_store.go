package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dexagent/internal/domain"
	"dexagent/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// Positions and recent trades are stored as JSONB documents; the
// snapshot is a point-in-time record, not a normalized ledger.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert persists a portfolio snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.PortfolioSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	positions, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	recentTrades, err := json.Marshal(snap.RecentTrades)
	if err != nil {
		return fmt.Errorf("marshal recent trades: %w", err)
	}

	query := `
		INSERT INTO portfolio_snapshots (
			ts, starting_balance, current_balance,
			realized_pnl, unrealized_pnl, win_count, loss_count,
			positions, recent_trades
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9
		)
	`

	_, err = s.pool.Exec(ctx, query,
		snap.Timestamp, snap.StartingBalance, snap.CurrentBalance,
		snap.RealizedPnL, snap.UnrealizedPnL, snap.WinCount, snap.LossCount,
		positions, recentTrades,
	)
	if err != nil {
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent snapshot. Returns ErrNotFound if none exist.
func (s *SnapshotStore) GetLatest(ctx context.Context) (*domain.PortfolioSnapshot, error) {
	query := `
		SELECT
			ts, starting_balance, current_balance,
			realized_pnl, unrealized_pnl, win_count, loss_count,
			positions, recent_trades
		FROM portfolio_snapshots
		ORDER BY ts DESC, id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query)
	snap, err := scanSnapshot(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return snap, nil
}

// GetByTimeRange retrieves all snapshots within [start, end] inclusive.
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.PortfolioSnapshot, error) {
	query := `
		SELECT
			ts, starting_balance, current_balance,
			realized_pnl, unrealized_pnl, win_count, loss_count,
			positions, recent_trades
		FROM portfolio_snapshots
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by time range: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.PortfolioSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}

// scanSnapshot scans one row, unmarshaling the JSONB columns.
func scanSnapshot(row pgx.Row) (*domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	var positions, recentTrades []byte

	err := row.Scan(
		&snap.Timestamp, &snap.StartingBalance, &snap.CurrentBalance,
		&snap.RealizedPnL, &snap.UnrealizedPnL, &snap.WinCount, &snap.LossCount,
		&positions, &recentTrades,
	)
	if err != nil {
		return nil, err
	}

	if len(positions) > 0 {
		if err := json.Unmarshal(positions, &snap.Positions); err != nil {
			return nil, fmt.Errorf("unmarshal positions: %w", err)
		}
	}
	if len(recentTrades) > 0 {
		if err := json.Unmarshal(recentTrades, &snap.RecentTrades); err != nil {
			return nil, fmt.Errorf("unmarshal recent trades: %w", err)
		}
	}

	return &snap, nil
}
