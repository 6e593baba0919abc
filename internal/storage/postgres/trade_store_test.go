package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexagent/internal/domain"
	"dexagent/internal/storage"
)

func testTrade(id, address string, at time.Time) *domain.Trade {
	return &domain.Trade{
		TradeID:      id,
		Timestamp:    at,
		Action:       domain.TradeActionBuy,
		TokenSymbol:  "TKN",
		TokenAddress: address,
		Price:        0.0025,
		Quantity:     40000,
		ValueUSD:     100,
		Reason:       "Initial position",
	}
}

func TestTradeStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := testTrade("trade-1", "addr1", at)

	err := store.Insert(ctx, trade)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, "trade-1")
	require.NoError(t, err)

	assert.Equal(t, trade.TradeID, got.TradeID)
	assert.True(t, got.Timestamp.Equal(at))
	assert.Equal(t, trade.Action, got.Action)
	assert.Equal(t, trade.TokenAddress, got.TokenAddress)
	assert.InDelta(t, trade.Price, got.Price, 1e-12)
	assert.InDelta(t, trade.Quantity, got.Quantity, 1e-9)
	assert.Equal(t, trade.Reason, got.Reason)
}

func TestTradeStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, testTrade("trade-dup", "addr1", at)))

	err := store.Insert(ctx, testTrade("trade-dup", "addr2", at))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_InsertBulkAtomicOnDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, testTrade("trade-1", "addr1", at)))

	err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("trade-2", "addr1", at.Add(time.Hour)),
		testTrade("trade-1", "addr1", at), // duplicate of existing
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The transaction rolled back, so trade-2 must not exist.
	_, err = store.GetByID(ctx, "trade-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_GetByTokenOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("trade-b", "addr1", at.Add(time.Hour)),
		testTrade("trade-a", "addr1", at),
		testTrade("trade-c", "addr2", at),
	})
	require.NoError(t, err)

	got, err := store.GetByToken(ctx, "addr1")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "trade-a", got[0].TradeID)
	assert.Equal(t, "trade-b", got[1].TradeID)
}

func TestTradeStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("trade-1", "addr1", at),
		testTrade("trade-2", "addr1", at.Add(time.Hour)),
		testTrade("trade-3", "addr1", at.Add(3*time.Hour)),
	})
	require.NoError(t, err)

	got, err := store.GetByTimeRange(ctx, at, at.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "trade-1", got[0].TradeID)
	assert.Equal(t, "trade-2", got[1].TradeID)
}

func TestTradeStore_InsertInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)

	err := store.Insert(context.Background(), &domain.Trade{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
