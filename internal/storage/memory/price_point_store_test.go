package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dexagent/internal/domain"
	"dexagent/internal/storage"
)

func pricePoint(address string, at time.Time, price float64) *domain.PricePoint {
	return &domain.PricePoint{
		TokenAddress: address,
		Timestamp:    at,
		Price:        price,
		Volume:       50000,
		Liquidity:    120000,
		MarketCap:    2000000,
	}
}

func TestPricePointStoreInsertBulkAndGet(t *testing.T) {
	store := NewPricePointStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := store.InsertBulk(ctx, []*domain.PricePoint{
		pricePoint("addr1", base.Add(time.Minute), 1.1),
		pricePoint("addr1", base, 1.0),
		pricePoint("addr2", base, 2.0),
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	got, err := store.GetByToken(ctx, "addr1")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if len(got) != 2 || got[0].Price != 1.0 || got[1].Price != 1.1 {
		t.Errorf("points = %v", got)
	}
}

func TestPricePointStoreDuplicateKey(t *testing.T) {
	store := NewPricePointStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.InsertBulk(ctx, []*domain.PricePoint{pricePoint("addr1", base, 1.0)}); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	// Same token and timestamp is a duplicate even with a different price.
	err := store.InsertBulk(ctx, []*domain.PricePoint{pricePoint("addr1", base, 1.5)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestPricePointStoreIntraBatchDuplicate(t *testing.T) {
	store := NewPricePointStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := store.InsertBulk(context.Background(), []*domain.PricePoint{
		pricePoint("addr1", base, 1.0),
		pricePoint("addr1", base, 1.0),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
	if got, _ := store.GetByToken(context.Background(), "addr1"); len(got) != 0 {
		t.Error("points were inserted despite failed batch")
	}
}

func TestPricePointStoreGetByTimeRange(t *testing.T) {
	store := NewPricePointStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := store.InsertBulk(ctx, []*domain.PricePoint{
		pricePoint("addr1", base, 1.0),
		pricePoint("addr1", base.Add(time.Hour), 1.1),
		pricePoint("addr1", base.Add(3*time.Hour), 1.3),
		pricePoint("addr2", base.Add(time.Hour), 2.0),
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "addr1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(got) != 2 || got[0].Price != 1.0 || got[1].Price != 1.1 {
		t.Errorf("points = %v", got)
	}
}
