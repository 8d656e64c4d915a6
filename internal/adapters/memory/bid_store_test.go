package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kisanmandi/bidledger/internal/domain/bids"
)

func seedBid(t *testing.T, store *BidStore, productID uuid.UUID, amount int64, createdAt time.Time) *bids.Bid {
	t.Helper()
	bid := &bids.Bid{
		ID:        uuid.New(),
		ProductID: productID,
		BuyerID:   uuid.New(),
		SellerID:  uuid.New(),
		Amount:    amount,
		Quantity:  10,
		Status:    bids.StatusPending,
		Version:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, store.Create(context.Background(), bid))
	return bid
}

func TestBidStore_GetReturnsSnapshot(t *testing.T) {
	store := NewBidStore()
	bid := seedBid(t, store, uuid.New(), 4000, time.Now())

	got, err := store.Get(context.Background(), bid.ID)
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	got.Amount = 9999
	got.Status = bids.StatusAccepted

	again, err := store.Get(context.Background(), bid.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), again.Amount)
	assert.Equal(t, bids.StatusPending, again.Status)
}

func TestBidStore_Get_NotFound(t *testing.T) {
	store := NewBidStore()
	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, bids.ErrBidNotFound)
}

func TestBidStore_Create_DuplicateActive(t *testing.T) {
	store := NewBidStore()
	product := uuid.New()
	first := seedBid(t, store, product, 4000, time.Now())

	dup := &bids.Bid{
		ID:        uuid.New(),
		ProductID: product,
		BuyerID:   first.BuyerID,
		SellerID:  first.SellerID,
		Amount:    4200,
		Quantity:  10,
		Status:    bids.StatusPending,
		Version:   1,
		CreatedAt: time.Now(),
	}
	err := store.Create(context.Background(), dup)
	assert.ErrorIs(t, err, bids.ErrDuplicateActiveBid)

	// A different buyer on the same product is fine.
	other := &bids.Bid{
		ID:        uuid.New(),
		ProductID: product,
		BuyerID:   uuid.New(),
		SellerID:  first.SellerID,
		Amount:    4200,
		Quantity:  10,
		Status:    bids.StatusPending,
		Version:   1,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), other))
}

func TestBidStore_Put_VersionGate(t *testing.T) {
	store := NewBidStore()
	bid := seedBid(t, store, uuid.New(), 4000, time.Now())

	next := bid.Clone()
	next.Status = bids.StatusAccepted
	stored, err := store.Put(context.Background(), next, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	// The stale writer loses.
	loser := bid.Clone()
	loser.Status = bids.StatusRejected
	_, err = store.Put(context.Background(), loser, 1)
	assert.ErrorIs(t, err, bids.ErrVersionConflict)

	_, err = store.Put(context.Background(), next, 1)
	assert.ErrorIs(t, err, bids.ErrVersionConflict)
}

func TestBidStore_Put_NotFound(t *testing.T) {
	store := NewBidStore()
	ghost := &bids.Bid{ID: uuid.New(), Version: 1}
	_, err := store.Put(context.Background(), ghost, 1)
	assert.ErrorIs(t, err, bids.ErrBidNotFound)
}

func TestBidStore_Put_ConcurrentWriters_OneWins(t *testing.T) {
	store := NewBidStore()
	bid := seedBid(t, store, uuid.New(), 4000, time.Now())

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := bid.Clone()
			next.Status = bids.StatusAccepted
			_, err := store.Put(context.Background(), next, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, bids.ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, won)

	final, err := store.Get(context.Background(), bid.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), final.Version)
}

func TestBidStore_ActiveIndexFollowsStatus(t *testing.T) {
	store := NewBidStore()
	ctx := context.Background()
	bid := seedBid(t, store, uuid.New(), 4000, time.Now())

	active, err := store.FindActiveByBuyerAndProduct(ctx, bid.BuyerID, bid.ProductID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, bid.ID, active.ID)

	done := bid.Clone()
	done.Status = bids.StatusWithdrawn
	_, err = store.Put(ctx, done, 1)
	require.NoError(t, err)

	active, err = store.FindActiveByBuyerAndProduct(ctx, bid.BuyerID, bid.ProductID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestBidStore_ListByProduct_Ordering(t *testing.T) {
	store := NewBidStore()
	product := uuid.New()
	base := time.Now()

	low := seedBid(t, store, product, 4000, base)
	highLate := seedBid(t, store, product, 5500, base.Add(time.Minute))
	highEarly := seedBid(t, store, product, 5500, base.Add(-time.Minute))
	seedBid(t, store, uuid.New(), 9000, base) // other product, excluded

	list, err := store.ListByProduct(context.Background(), product)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, highEarly.ID, list[0].ID)
	assert.Equal(t, highLate.ID, list[1].ID)
	assert.Equal(t, low.ID, list[2].ID)
}

func TestBidStore_ListStaleActive(t *testing.T) {
	store := NewBidStore()
	ctx := context.Background()
	now := time.Now()

	stale1 := seedBid(t, store, uuid.New(), 4000, now.Add(-72*time.Hour))
	stale2 := seedBid(t, store, uuid.New(), 4000, now.Add(-50*time.Hour))
	seedBid(t, store, uuid.New(), 4000, now) // fresh

	terminal := seedBid(t, store, uuid.New(), 4000, now.Add(-72*time.Hour))
	done := terminal.Clone()
	done.Status = bids.StatusRejected
	_, err := store.Put(ctx, done, 1)
	require.NoError(t, err)

	list, err := store.ListStaleActive(ctx, now.Add(-48*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	ids := []uuid.UUID{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{stale1.ID, stale2.ID}, ids)

	limited, err := store.ListStaleActive(ctx, now.Add(-48*time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
