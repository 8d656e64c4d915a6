package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OutboxStatus defines the status of an event in the outbox
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// maxPublishAttempts is how many times the relay tries to publish an event
// before marking it failed and dropping it from the pending set.
const maxPublishAttempts = 5

// OutboxEvent is a domain event persisted for asynchronous delivery. Payload
// is the JSON-encoded bids.Event.
type OutboxEvent struct {
	ID          uuid.UUID    `db:"id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	Attempts    int          `db:"attempts"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt *time.Time   `db:"processed_at"`
}

// OutboxRepository defines the interface for interacting with the outbox table
type OutboxRepository interface {
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error)
	UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error
	IncrementAttempts(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error)
}

// EventPublisher defines the interface for publishing events to a broker
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// TransactionManager begins database transactions for the relay's
// fetch-publish-mark cycle.
type TransactionManager interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// OutboxRelay polls the database for pending events and publishes them to the
// broker, marking them published in the same transaction that locked them.
type OutboxRelay struct {
	outboxRepo OutboxRepository
	publisher  EventPublisher
	txManager  TransactionManager
	batchSize  int
	interval   time.Duration
	exchange   string
	logger     *slog.Logger
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(
	outboxRepo OutboxRepository,
	publisher EventPublisher,
	txManager TransactionManager,
	batchSize int,
	interval time.Duration,
	exchange string,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		txManager:  txManager,
		batchSize:  batchSize,
		interval:   interval,
		exchange:   exchange,
		logger:     logger,
	}
}

// Run starts the polling loop
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Initial run
	if err := r.processBatch(ctx); err != nil {
		r.logger.Error("Error processing batch", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error("Error processing batch", "error", err)
			}
		}
	}
}

func (r *OutboxRelay) processBatch(ctx context.Context) error {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Fetch pending events with FOR UPDATE SKIP LOCKED
	events, err := r.outboxRepo.GetPendingEvents(ctx, tx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending events: %w", err)
	}

	if len(events) == 0 {
		return nil
	}

	r.logger.Info("Processing events", "count", len(events))

	for _, event := range events {
		// Routing key is the event type, e.g. bid.accepted
		pubErr := r.publisher.Publish(ctx, r.exchange, event.EventType, event.Payload)
		if pubErr != nil {
			attempts, incErr := r.outboxRepo.IncrementAttempts(ctx, tx, event.ID)
			if incErr != nil {
				return fmt.Errorf("failed to record publish failure for %s: %w", event.ID, incErr)
			}
			if attempts >= maxPublishAttempts {
				// Poison event: park it as failed so it stops blocking the queue.
				if statusErr := r.outboxRepo.UpdateEventStatus(ctx, tx, event.ID, OutboxStatusFailed); statusErr != nil {
					return fmt.Errorf("failed to mark event failed %s: %w", event.ID, statusErr)
				}
				r.logger.Error("Dropping event after repeated publish failures",
					"event_id", event.ID, "attempts", attempts, "error", pubErr)
				continue
			}
			// Commit so the attempt count and any statuses already updated in
			// this batch stick; the event is retried on the next tick.
			if commitErr := tx.Commit(ctx); commitErr != nil {
				return fmt.Errorf("failed to commit after publish failure: %w", commitErr)
			}
			return fmt.Errorf("failed to publish event %s: %w", event.ID, pubErr)
		}

		err = r.outboxRepo.UpdateEventStatus(ctx, tx, event.ID, OutboxStatusPublished)
		if err != nil {
			return fmt.Errorf("failed to update event status %s: %w", event.ID, err)
		}
	}

	return tx.Commit(ctx)
}
