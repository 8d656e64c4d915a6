package bids

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a bid may sit in an active state before any touch
// expires it.
const DefaultTTL = 48 * time.Hour

// CounterPolicy validates a proposed counter-offer against the bid it
// responds to. The exact inequality is a negotiation policy, not a fixed
// contract, so it is injectable.
type CounterPolicy func(current *Bid, proposed *CounterOffer) error

// StrictlyIncreasing is the default policy: every counter must strictly
// exceed the amount currently on the table. This keeps the negotiation
// monotonic and rules out degenerate counter loops.
func StrictlyIncreasing(current *Bid, proposed *CounterOffer) error {
	if proposed.Amount <= current.EffectiveAmount() {
		return ErrInvalidCounterOffer
	}
	return nil
}

// Lifecycle is the bid state machine. It is pure: Apply mutates only the bid
// it is handed and performs no I/O.
type Lifecycle struct {
	ttl           time.Duration
	counterPolicy CounterPolicy
}

// NewLifecycle creates a lifecycle with the given TTL and counter policy.
// Zero ttl falls back to DefaultTTL; nil policy falls back to StrictlyIncreasing.
func NewLifecycle(ttl time.Duration, policy CounterPolicy) *Lifecycle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if policy == nil {
		policy = StrictlyIncreasing
	}
	return &Lifecycle{ttl: ttl, counterPolicy: policy}
}

// TTL returns the configured time-to-live for active bids.
func (l *Lifecycle) TTL() time.Duration {
	return l.ttl
}

// Stale reports whether an active bid has outlived its TTL and must be
// expired before any other action is evaluated.
func (l *Lifecycle) Stale(b *Bid, now time.Time) bool {
	return b.Status.IsActive() && now.Sub(b.CreatedAt) > l.ttl
}

// requiredRole returns which party owns the given action in the given state,
// per the transition table. A missing entry means the transition itself is
// invalid regardless of actor.
func requiredRole(status Status, action Action) (Role, error) {
	switch status {
	case StatusPending:
		switch action {
		case ActionAccept, ActionReject, ActionCounter:
			return RoleSeller, nil
		case ActionWithdraw:
			return RoleBuyer, nil
		}
	case StatusCountered:
		// The ball is in the buyer's court: accept the counter, reject it,
		// or re-counter. Withdraw is not available from countered.
		switch action {
		case ActionAccept, ActionReject, ActionCounter:
			return RoleBuyer, nil
		}
	}
	return "", ErrInvalidTransition
}

// Apply validates the response against the current state and, on success,
// mutates b in place and returns the event type to emit. The caller is
// expected to hand in a clone and commit it via compare-and-swap.
func (l *Lifecycle) Apply(b *Bid, actorID uuid.UUID, resp Response, now time.Time) (EventType, error) {
	if !resp.Action.IsValid() {
		return "", ErrInvalidAction
	}

	// Expiry is a system action: no party authorization, but it is only
	// valid once the bid has outlived its TTL. A fresh bid cannot be expired
	// by anyone.
	if resp.Action == ActionExpire {
		if !b.Status.IsActive() || !l.Stale(b, now) {
			return "", ErrInvalidTransition
		}
		b.Status = StatusExpired
		b.UpdatedAt = now
		return EventTypeBidExpired, nil
	}

	// Strangers get a uniform Unauthorized so bid identifiers cannot be probed.
	if actorID != b.BuyerID && actorID != b.SellerID {
		return "", ErrUnauthorized
	}

	role, err := requiredRole(b.Status, resp.Action)
	if err != nil {
		return "", err
	}
	owner := b.BuyerID
	if role == RoleSeller {
		owner = b.SellerID
	}
	if actorID != owner {
		return "", ErrUnauthorized
	}

	switch resp.Action {
	case ActionAccept:
		// Accepting a counter locks in the countered terms.
		if b.Status == StatusCountered && b.CounterOffer != nil {
			b.Amount = b.CounterOffer.Amount
			b.Quantity = b.CounterOffer.Quantity
		}
		b.Status = StatusAccepted
		b.UpdatedAt = now
		return EventTypeBidAccepted, nil

	case ActionReject:
		b.Status = StatusRejected
		b.UpdatedAt = now
		return EventTypeBidRejected, nil

	case ActionCounter:
		if resp.Counter == nil {
			return "", ErrInvalidCounterOffer
		}
		if resp.Counter.Amount <= 0 {
			return "", ErrInvalidAmount
		}
		if resp.Counter.Quantity <= 0 {
			return "", ErrInvalidQuantity
		}
		if policyErr := l.counterPolicy(b, resp.Counter); policyErr != nil {
			return "", policyErr
		}
		b.CounterOffer = &CounterOffer{
			Amount:    resp.Counter.Amount,
			Quantity:  resp.Counter.Quantity,
			Message:   resp.Counter.Message,
			CreatedAt: now,
		}
		b.Status = StatusCountered
		b.UpdatedAt = now
		return EventTypeBidCountered, nil

	case ActionWithdraw:
		b.Status = StatusWithdrawn
		b.UpdatedAt = now
		return EventTypeBidWithdrawn, nil
	}

	return "", ErrInvalidAction
}
