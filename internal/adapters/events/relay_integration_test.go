package events_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/kisanmandi/bidledger/internal/adapters/database"
	"github.com/kisanmandi/bidledger/internal/adapters/events"
	"github.com/kisanmandi/bidledger/internal/domain/bids"
	pkgevents "github.com/kisanmandi/bidledger/pkg/events"
	"github.com/kisanmandi/bidledger/pkg/testhelpers"
)

func TestOutboxRelayToRabbitMQ_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 1. Start RabbitMQ
	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err)
	defer func() {
		if termErr := rabbitmqContainer.Terminate(ctx); termErr != nil {
			t.Fatalf("failed to terminate container: %s", termErr)
		}
	}()

	amqpURL, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// 2. Setup Postgres
	testDB := testhelpers.NewTestDatabase(t)
	defer testDB.Close()
	pool := testDB.Pool

	// 3. Setup relay: outbox -> RabbitMQ
	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer conn.Close()

	publisher, err := events.NewRabbitMQPublisher(conn)
	require.NoError(t, err)
	defer publisher.Close()

	relay := pkgevents.NewOutboxRelay(
		database.NewPostgresOutboxRepository(pool),
		publisher,
		database.NewPostgresTransactionManager(pool, 3*time.Second),
		10,
		100*time.Millisecond,
		events.Exchange,
		logger,
	)

	relayCtx, cancelRelay := context.WithCancel(ctx)
	defer cancelRelay()
	go func() { _ = relay.Run(relayCtx) }()

	// 4. Bind a throwaway queue to observe deliveries
	consumerConn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer consumerConn.Close()

	ch, err := consumerConn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, false, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "bid.*", events.Exchange, false, nil))

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	require.NoError(t, err)

	// 5. Emit a domain event through the outbox
	event := &bids.Event{
		ID:   uuid.New(),
		Type: bids.EventTypeBidCountered,
		Bid: &bids.Bid{
			ID:        uuid.New(),
			ProductID: uuid.New(),
			BuyerID:   uuid.New(),
			SellerID:  uuid.New(),
			Amount:    4000,
			Quantity:  10,
			Status:    bids.StatusCountered,
			CounterOffer: &bids.CounterOffer{
				Amount:    4500,
				Quantity:  10,
				CreatedAt: time.Now().UTC(),
			},
			Version: 2,
		},
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, database.NewOutboxPublisher(pool).Publish(ctx, event))

	// 6. The relay should deliver it with the event type as routing key
	select {
	case msg := <-msgs:
		assert.Equal(t, "bid.countered", msg.RoutingKey)
		var received bids.Event
		require.NoError(t, json.Unmarshal(msg.Body, &received))
		assert.Equal(t, event.ID, received.ID)
		require.NotNil(t, received.Bid)
		assert.Equal(t, event.Bid.ID, received.Bid.ID)
		require.NotNil(t, received.Bid.CounterOffer)
		assert.Equal(t, int64(4500), received.Bid.CounterOffer.Amount)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from RabbitMQ")
	}

	// 7. The outbox row must be marked published
	require.Eventually(t, func() bool {
		var status string
		if scanErr := pool.QueryRow(ctx, "SELECT status FROM outbox_events WHERE id = $1", event.ID).Scan(&status); scanErr != nil {
			return false
		}
		return status == string(pkgevents.OutboxStatusPublished)
	}, 5*time.Second, 100*time.Millisecond)
}
