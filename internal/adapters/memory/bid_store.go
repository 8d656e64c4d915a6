// Package memory provides an in-process BidStore used by tests and local
// development. It honors the same contract as the Postgres store: per-key
// atomic compare-and-swap and snapshot copies on every read.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kisanmandi/bidledger/internal/domain/bids"
)

type activeKey struct {
	productID uuid.UUID
	buyerID   uuid.UUID
}

// BidStore is a mutex-guarded map keyed by bid ID with a secondary index
// enforcing the one-active-bid-per-(buyer, product) invariant.
type BidStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*bids.Bid
	active map[activeKey]uuid.UUID
	now    func() time.Time
}

// NewBidStore creates an empty in-memory bid store.
func NewBidStore() *BidStore {
	return &BidStore{
		byID:   make(map[uuid.UUID]*bids.Bid),
		active: make(map[activeKey]uuid.UUID),
		now:    time.Now,
	}
}

var _ bids.BidStore = (*BidStore)(nil)

// Get retrieves a snapshot of the bid by its ID
func (s *BidStore) Get(_ context.Context, bidID uuid.UUID) (*bids.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bid, ok := s.byID[bidID]
	if !ok {
		return nil, bids.ErrBidNotFound
	}
	return bid.Clone(), nil
}

// Create inserts a new bid, enforcing the one-active-bid invariant atomically
func (s *BidStore) Create(_ context.Context, bid *bids.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := activeKey{productID: bid.ProductID, buyerID: bid.BuyerID}
	if bid.Status.IsActive() {
		if _, exists := s.active[key]; exists {
			return bids.ErrDuplicateActiveBid
		}
	}

	stored := bid.Clone()
	s.byID[stored.ID] = stored
	if stored.Status.IsActive() {
		s.active[key] = stored.ID
	}
	return nil
}

// Put commits a mutation via compare-and-swap on expectedVersion
func (s *BidStore) Put(_ context.Context, bid *bids.Bid, expectedVersion int64) (*bids.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[bid.ID]
	if !ok {
		return nil, bids.ErrBidNotFound
	}
	if current.Version != expectedVersion {
		return nil, bids.ErrVersionConflict
	}

	stored := bid.Clone()
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = s.now()
	s.byID[stored.ID] = stored

	key := activeKey{productID: stored.ProductID, buyerID: stored.BuyerID}
	if stored.Status.IsActive() {
		s.active[key] = stored.ID
	} else if s.active[key] == stored.ID {
		delete(s.active, key)
	}

	return stored.Clone(), nil
}

// FindActiveByBuyerAndProduct returns the buyer's active bid on the product,
// or (nil, nil) when there is none
func (s *BidStore) FindActiveByBuyerAndProduct(_ context.Context, buyerID, productID uuid.UUID) (*bids.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[activeKey{productID: productID, buyerID: buyerID}]
	if !ok {
		return nil, nil
	}
	return s.byID[id].Clone(), nil
}

// ListByProduct returns all bids on a product ordered by amount descending,
// then created_at ascending
func (s *BidStore) ListByProduct(_ context.Context, productID uuid.UUID) ([]*bids.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*bids.Bid
	for _, bid := range s.byID {
		if bid.ProductID == productID {
			result = append(result, bid.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Amount != result[j].Amount {
			return result[i].Amount > result[j].Amount
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ListByParty returns all bids where the user is the given party
func (s *BidStore) ListByParty(_ context.Context, userID uuid.UUID, role bids.Role) ([]*bids.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*bids.Bid
	for _, bid := range s.byID {
		switch role {
		case bids.RoleBuyer:
			if bid.BuyerID == userID {
				result = append(result, bid.Clone())
			}
		case bids.RoleSeller:
			if bid.SellerID == userID {
				result = append(result, bid.Clone())
			}
		}
	}
	return result, nil
}

// ListStaleActive returns up to limit active bids created before olderThan
func (s *BidStore) ListStaleActive(_ context.Context, olderThan time.Time, limit int) ([]*bids.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*bids.Bid
	for _, bid := range s.byID {
		if !bid.Status.IsActive() || !bid.CreatedAt.Before(olderThan) {
			continue
		}
		result = append(result, bid.Clone())
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
