package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// casAttempts bounds the read-validate-write retries on version conflicts
// before surfacing ErrConcurrentModification.
const casAttempts = 3

// Service is the public negotiation surface: it composes the store and the
// lifecycle, enforces authorization and the one-active-bid invariant, and
// emits domain events for external collaborators.
type Service struct {
	store      BidStore
	publisher  EventPublisher
	translator Translator // optional
	lifecycle  *Lifecycle
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a negotiation service. translator may be nil when no
// translation collaborator is configured.
func NewService(store BidStore, publisher EventPublisher, translator Translator, lifecycle *Lifecycle, logger *slog.Logger) *Service {
	if lifecycle == nil {
		lifecycle = NewLifecycle(0, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		publisher:  publisher,
		translator: translator,
		lifecycle:  lifecycle,
		logger:     logger,
		now:        time.Now,
	}
}

// PlaceBid creates a new pending bid for the buyer on the product.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	if cmd.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if cmd.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if cmd.BuyerID == cmd.SellerID {
		return nil, ErrSelfBid
	}

	existing, err := s.store.FindActiveByBuyerAndProduct(ctx, cmd.BuyerID, cmd.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active bid: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateActiveBid
	}

	now := s.now()
	bid := &Bid{
		ID:        uuid.New(),
		ProductID: cmd.ProductID,
		BuyerID:   cmd.BuyerID,
		SellerID:  cmd.SellerID,
		Amount:    cmd.Amount,
		Quantity:  cmd.Quantity,
		Message:   s.buildMessage(ctx, cmd.Message),
		Status:    StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The store enforces the invariant atomically; the lookup above only
	// gives callers a clean error ahead of the common race-free path.
	if err := s.store.Create(ctx, bid); err != nil {
		if errors.Is(err, ErrDuplicateActiveBid) {
			return nil, ErrDuplicateActiveBid
		}
		return nil, fmt.Errorf("failed to create bid: %w", err)
	}

	s.emit(ctx, EventTypeBidPlaced, cmd.BuyerID, bid)
	return bid, nil
}

// RespondToBid applies a party's (or the system's) response to a bid. The
// read-validate-write cycle is retried on version conflicts; after retry
// exhaustion the caller receives ErrConcurrentModification.
func (s *Service) RespondToBid(ctx context.Context, bidID, actorID uuid.UUID, resp Response) (*Bid, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := s.store.Get(ctx, bidID)
		if err != nil {
			return nil, err
		}
		now := s.now()

		// Lazy expiry: a stale active bid expires before the requested
		// action is evaluated.
		if s.lifecycle.Stale(current, now) {
			expired := current.Clone()
			expired.Status = StatusExpired
			stored, putErr := s.store.Put(ctx, expired, current.Version)
			if errors.Is(putErr, ErrVersionConflict) {
				continue
			}
			if putErr != nil {
				return nil, fmt.Errorf("failed to expire stale bid: %w", putErr)
			}
			s.emit(ctx, EventTypeBidExpired, uuid.Nil, stored)
			if resp.Action == ActionExpire {
				return stored, nil
			}
			return nil, ErrInvalidTransition
		}

		next := current.Clone()
		eventType, err := s.lifecycle.Apply(next, actorID, resp, now)
		if err != nil {
			return nil, err
		}

		stored, err := s.store.Put(ctx, next, current.Version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store bid: %w", err)
		}

		s.emit(ctx, eventType, actorID, stored)
		return stored, nil
	}
	return nil, ErrConcurrentModification
}

// GetBid returns a snapshot of the bid, expiring it first if stale.
func (s *Service) GetBid(ctx context.Context, bidID uuid.UUID) (*Bid, error) {
	bid, err := s.store.Get(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if s.lifecycle.Stale(bid, s.now()) {
		stored, expireErr := s.expire(ctx, bid)
		if errors.Is(expireErr, ErrVersionConflict) {
			// Another writer touched the bid between the read and the expiry
			// commit; their write settles the state.
			return s.store.Get(ctx, bidID)
		}
		if expireErr != nil {
			return nil, fmt.Errorf("failed to expire stale bid: %w", expireErr)
		}
		return stored, nil
	}
	return bid, nil
}

// GetTopBid returns the highest-ranked active bid on the product, or
// (nil, nil) when the product has none. Stale bids encountered on the way are
// expired best-effort.
func (s *Service) GetTopBid(ctx context.Context, productID uuid.UUID) (*Bid, error) {
	list, err := s.store.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	now := s.now()
	for _, bid := range list {
		if !bid.Status.IsActive() {
			continue
		}
		if s.lifecycle.Stale(bid, now) {
			if _, expireErr := s.expire(ctx, bid); expireErr != nil {
				s.logger.Warn("failed to expire stale bid on read",
					"bid_id", bid.ID, "error", expireErr)
			}
			continue
		}
		return bid, nil
	}
	return nil, nil
}

// ListProductBids returns all bids on the product in priority order
// (amount descending, earlier bid first on ties). Stale entries are expired
// on the way out.
func (s *Service) ListProductBids(ctx context.Context, productID uuid.UUID) ([]*Bid, error) {
	list, err := s.store.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return s.expireStaleInList(ctx, list), nil
}

// ListActivity is the read-only projection of a user's bids for the UI.
// Stale entries are expired on the way out.
func (s *Service) ListActivity(ctx context.Context, userID uuid.UUID, role Role) ([]*Bid, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidAction, role)
	}
	list, err := s.store.ListByParty(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return s.expireStaleInList(ctx, list), nil
}

// expireStaleInList commits expiry for stale bids found in a read projection.
// When the commit loses a race the snapshot is still presented as expired: a
// stale active bid has no legitimate transition left except expiry.
func (s *Service) expireStaleInList(ctx context.Context, list []*Bid) []*Bid {
	now := s.now()
	for i, bid := range list {
		if !s.lifecycle.Stale(bid, now) {
			continue
		}
		stored, err := s.expire(ctx, bid)
		if err != nil {
			s.logger.Warn("failed to expire stale bid on read",
				"bid_id", bid.ID, "error", err)
			bid.Status = StatusExpired
			continue
		}
		list[i] = stored
	}
	return list
}

// ExpireStale expires up to limit active bids that have outlived the TTL and
// returns how many were transitioned. Intended for a periodic sweeper; lazy
// expiry on touch does not depend on it.
func (s *Service) ExpireStale(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-s.lifecycle.TTL())
	stale, err := s.store.ListStaleActive(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale bids: %w", err)
	}
	expired := 0
	for _, bid := range stale {
		if _, expireErr := s.expire(ctx, bid); expireErr != nil {
			// A conflict means someone else touched the bid; it will be
			// re-evaluated on its next touch or sweep.
			s.logger.Warn("failed to expire stale bid", "bid_id", bid.ID, "error", expireErr)
			continue
		}
		expired++
	}
	return expired, nil
}

// expire commits the expired transition for a stale bid and emits the event.
func (s *Service) expire(ctx context.Context, bid *Bid) (*Bid, error) {
	next := bid.Clone()
	next.Status = StatusExpired
	stored, err := s.store.Put(ctx, next, bid.Version)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, EventTypeBidExpired, uuid.Nil, stored)
	return stored, nil
}

// buildMessage resolves the caller's message draft, asking the translation
// collaborator for a translated copy when a target language is requested.
// Translation failures degrade to the original text only.
func (s *Service) buildMessage(ctx context.Context, draft *MessageDraft) *Message {
	if draft == nil || draft.Text == "" {
		return nil
	}
	msg := &Message{Text: draft.Text, Language: draft.Language}
	if s.translator == nil || draft.TargetLanguage == "" || draft.TargetLanguage == draft.Language {
		return msg
	}
	translated, err := s.translator.Translate(ctx, draft.Text, draft.Language, draft.TargetLanguage)
	if err != nil {
		s.logger.Warn("translation failed, storing original text only",
			"source_lang", draft.Language, "target_lang", draft.TargetLanguage, "error", err)
		return msg
	}
	msg.Translated = translated
	return msg
}

func (s *Service) emit(ctx context.Context, eventType EventType, actorID uuid.UUID, bid *Bid) {
	if s.publisher == nil {
		return
	}
	event := &Event{
		ID:         uuid.New(),
		Type:       eventType,
		Actor:      actorID,
		Bid:        bid,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event",
			"event_type", eventType, "bid_id", bid.ID, "error", err)
	}
}
