package clickhouse

import (
	"context"
	"fmt"
	"time"

	"dexagent/internal/domain"
	"dexagent/internal/storage"
)

// PricePointStore implements storage.PricePointStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are detected with
// explicit checks before the batch insert.
type PricePointStore struct {
	conn *Conn
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(conn *Conn) *PricePointStore {
	return &PricePointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate
// (token_address, timestamp).
func (s *PricePointStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		tokenAddress string
		timestampMs  int64
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		k := key{p.TokenAddress, p.Timestamp.UnixMilli()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.TokenAddress, p.Timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_points (
			token_address, timestamp, price, volume, liquidity, market_cap
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.TokenAddress, p.Timestamp,
			p.Price, p.Volume, p.Liquidity, p.MarketCap,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByToken retrieves all points for a token, ordered by timestamp ASC.
func (s *PricePointStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.PricePoint, error) {
	query := `
		SELECT token_address, timestamp, price, volume, liquidity, market_cap
		FROM price_points
		WHERE token_address = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByTimeRange retrieves points for a token within [start, end] (inclusive).
func (s *PricePointStore) GetByTimeRange(ctx context.Context, tokenAddress string, start, end time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT token_address, timestamp, price, volume, liquidity, market_cap
		FROM price_points
		WHERE token_address = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenAddress, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// exists checks if a point with the given key exists.
func (s *PricePointStore) exists(ctx context.Context, tokenAddress string, timestamp time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM price_points
		WHERE token_address = ? AND timestamp = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, tokenAddress, timestamp).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanPricePoints scans multiple rows.
func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint

		err := rows.Scan(
			&p.TokenAddress, &p.Timestamp,
			&p.Price, &p.Volume, &p.Liquidity, &p.MarketCap,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price point row: %w", err)
		}

		p.Timestamp = p.Timestamp.UTC()
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price point rows: %w", err)
	}

	return points, nil
}
