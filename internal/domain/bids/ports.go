package bids

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BidStore is the canonical keyed storage for bids. Implementations must make
// Put atomic per key: of two compare-and-swap writes against the same
// expected version, exactly one may succeed. Lookups that find nothing return
// (nil, nil) for Find*, and ErrBidNotFound for Get.
type BidStore interface {
	// Get retrieves a snapshot of the bid by its ID
	Get(ctx context.Context, bidID uuid.UUID) (*Bid, error)

	// Create inserts a new bid. Returns ErrDuplicateActiveBid if an active
	// bid for the same (buyer, product) pair already exists.
	Create(ctx context.Context, bid *Bid) error

	// Put commits a mutation via compare-and-swap on expectedVersion.
	// On success the stored version is incremented and updated_at refreshed;
	// the committed snapshot is returned. On mismatch it fails with
	// ErrVersionConflict and changes nothing.
	Put(ctx context.Context, bid *Bid, expectedVersion int64) (*Bid, error)

	// FindActiveByBuyerAndProduct returns the buyer's active bid on the
	// product, or (nil, nil) when there is none.
	FindActiveByBuyerAndProduct(ctx context.Context, buyerID, productID uuid.UUID) (*Bid, error)

	// ListByProduct returns all bids on a product ordered by amount
	// descending, then created_at ascending (earlier bid wins a tie).
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*Bid, error)

	// ListByParty returns all bids where the user is the given party.
	// Order is unspecified.
	ListByParty(ctx context.Context, userID uuid.UUID, role Role) ([]*Bid, error)

	// ListStaleActive returns up to limit active bids created before
	// olderThan, for the expiry sweeper.
	ListStaleActive(ctx context.Context, olderThan time.Time, limit int) ([]*Bid, error)
}

// EventPublisher receives domain events after a bid mutation commits.
// Delivery is fire-and-forget: a publish failure never rolls back the state
// change.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Translator is the external translation capability. The returned payload is
// opaque: it is stored on the bid message verbatim and never inspected.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (json.RawMessage, error)
}
