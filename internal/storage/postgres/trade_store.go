package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dexagent/internal/domain"
	"dexagent/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			trade_id, ts, action, token_symbol, token_address,
			price, quantity, value_usd, reason
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.Timestamp, t.Action, t.TokenSymbol, t.TokenAddress,
		t.Price, t.Quantity, t.ValueUSD, t.Reason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trades (
			trade_id, ts, action, token_symbol, token_address,
			price, quantity, value_usd, reason
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	for _, t := range trades {
		_, err := tx.Exec(ctx, query,
			t.TradeID, t.Timestamp, t.Action, t.TokenSymbol, t.TokenAddress,
			t.Price, t.Quantity, t.ValueUSD, t.Reason,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `
		SELECT
			trade_id, ts, action, token_symbol, token_address,
			price, quantity, value_usd, reason
		FROM trades
		WHERE trade_id = $1
	`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByToken retrieves all trades for a token address.
func (s *TradeStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.Trade, error) {
	query := `
		SELECT
			trade_id, ts, action, token_symbol, token_address,
			price, quantity, value_usd, reason
		FROM trades
		WHERE token_address = $1
		ORDER BY ts ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get trades by token: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByTimeRange retrieves all trades within [start, end] inclusive.
func (s *TradeStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Trade, error) {
	query := `
		SELECT
			trade_id, ts, action, token_symbol, token_address,
			price, quantity, value_usd, reason
		FROM trades
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get trades by time range: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade

	err := row.Scan(
		&t.TradeID, &t.Timestamp, &t.Action, &t.TokenSymbol, &t.TokenAddress,
		&t.Price, &t.Quantity, &t.ValueUSD, &t.Reason,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade

		err := rows.Scan(
			&t.TradeID, &t.Timestamp, &t.Action, &t.TokenSymbol, &t.TokenAddress,
			&t.Price, &t.Quantity, &t.ValueUSD, &t.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
