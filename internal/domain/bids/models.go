package bids

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a bid
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCountered Status = "countered"
	StatusExpired   Status = "expired"
	StatusWithdrawn Status = "withdrawn"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is a known lifecycle state
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCountered, StatusExpired, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// IsActive reports whether the bid still awaits a response from one of the parties
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusCountered
}

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusExpired, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// Role identifies which side of the negotiation a user is on
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// Action is an operation a party (or the system) performs on a bid
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionCounter  Action = "counter"
	ActionWithdraw Action = "withdraw"
	ActionExpire   Action = "expire"
)

// IsValid checks if the action is known
func (a Action) IsValid() bool {
	switch a {
	case ActionAccept, ActionReject, ActionCounter, ActionWithdraw, ActionExpire:
		return true
	default:
		return false
	}
}

// Message carries the buyer's free-text note on a bid. Translated holds the
// raw payload returned by the translation collaborator; it is stored verbatim
// and never interpreted.
type Message struct {
	Text       string          `json:"text"`
	Language   string          `json:"language,omitempty"`
	Translated json.RawMessage `json:"translated,omitempty"`
}

// CounterOffer is the seller's (or, on a re-counter, the buyer's) proposed
// replacement terms. Present only while the bid is countered.
type CounterOffer struct {
	Amount    int64     `json:"amount"`
	Quantity  int64     `json:"quantity"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Bid is a single offer from a buyer on a product listing.
// Amounts are in minor currency units (e.g. paise) per unit of produce.
type Bid struct {
	ID           uuid.UUID     `json:"id"`
	ProductID    uuid.UUID     `json:"product_id"`
	BuyerID      uuid.UUID     `json:"buyer_id"`
	SellerID     uuid.UUID     `json:"seller_id"`
	Amount       int64         `json:"amount"`
	Quantity     int64         `json:"quantity"`
	Message      *Message      `json:"message,omitempty"`
	Status       Status        `json:"status"`
	CounterOffer *CounterOffer `json:"counter_offer,omitempty"`
	Version      int64         `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// EffectiveAmount is the unit price currently on the table: the counter-offer
// amount while countered, the buyer's amount otherwise.
func (b *Bid) EffectiveAmount() int64 {
	if b.Status == StatusCountered && b.CounterOffer != nil {
		return b.CounterOffer.Amount
	}
	return b.Amount
}

// EffectiveQuantity is the unit count currently on the table.
func (b *Bid) EffectiveQuantity() int64 {
	if b.Status == StatusCountered && b.CounterOffer != nil {
		return b.CounterOffer.Quantity
	}
	return b.Quantity
}

// Clone returns a deep copy of the bid. Stores hand out clones so callers can
// never mutate canonical records directly.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	c := *b
	if b.Message != nil {
		m := *b.Message
		if b.Message.Translated != nil {
			m.Translated = append(json.RawMessage(nil), b.Message.Translated...)
		}
		c.Message = &m
	}
	if b.CounterOffer != nil {
		co := *b.CounterOffer
		c.CounterOffer = &co
	}
	return &c
}

// EventType represents the type of domain event
type EventType string

const (
	EventTypeBidPlaced    EventType = "bid.placed"
	EventTypeBidAccepted  EventType = "bid.accepted"
	EventTypeBidRejected  EventType = "bid.rejected"
	EventTypeBidCountered EventType = "bid.countered"
	EventTypeBidWithdrawn EventType = "bid.withdrawn"
	EventTypeBidExpired   EventType = "bid.expired"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// IsValid checks if the event type is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeBidPlaced, EventTypeBidAccepted, EventTypeBidRejected,
		EventTypeBidCountered, EventTypeBidWithdrawn, EventTypeBidExpired:
		return true
	default:
		return false
	}
}

// Event is emitted after every committed bid mutation. Actor is uuid.Nil for
// system-initiated transitions (expiry).
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	Actor      uuid.UUID `json:"actor_id"`
	Bid        *Bid      `json:"bid"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MessageDraft is the caller-supplied message on placeBid. TargetLanguage,
// when set, asks the translation collaborator for a translated copy.
type MessageDraft struct {
	Text           string
	Language       string
	TargetLanguage string
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	ProductID uuid.UUID
	BuyerID   uuid.UUID
	SellerID  uuid.UUID
	Amount    int64
	Quantity  int64
	Message   *MessageDraft
}

// Response represents a party's (or the system's) reply to an existing bid
type Response struct {
	Action  Action
	Counter *CounterOffer // required for ActionCounter
}
