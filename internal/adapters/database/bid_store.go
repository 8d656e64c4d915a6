package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kisanmandi/bidledger/internal/domain/bids"
)

const uniqueViolationCode = "23505"

const bidColumns = `
	id, product_id, buyer_id, seller_id, amount, quantity,
	message_text, message_lang, message_translated, status,
	counter_amount, counter_quantity, counter_message, counter_created_at,
	version, created_at, updated_at`

// PostgresBidStore implements bids.BidStore using pgx
type PostgresBidStore struct {
	pool *pgxpool.Pool
}

// NewPostgresBidStore creates a new PostgreSQL bid store
func NewPostgresBidStore(pool *pgxpool.Pool) *PostgresBidStore {
	return &PostgresBidStore{pool: pool}
}

var _ bids.BidStore = (*PostgresBidStore)(nil)

// Get retrieves a snapshot of the bid by its ID
func (s *PostgresBidStore) Get(ctx context.Context, bidID uuid.UUID) (*bids.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`
	bid, err := scanBid(s.pool.QueryRow(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bids.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// Create inserts a new bid. The partial unique index on active
// (product_id, buyer_id) pairs enforces the one-active-bid invariant
// atomically; a violation surfaces as ErrDuplicateActiveBid.
func (s *PostgresBidStore) Create(ctx context.Context, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (
			id, product_id, buyer_id, seller_id, amount, quantity,
			message_text, message_lang, message_translated, status,
			counter_amount, counter_quantity, counter_message, counter_created_at,
			version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	args := insertArgs(bid)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return bids.ErrDuplicateActiveBid
		}
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// Put commits a mutation via compare-and-swap on expectedVersion. The UPDATE
// matches on (id, version) so of two concurrent writers exactly one wins.
func (s *PostgresBidStore) Put(ctx context.Context, bid *bids.Bid, expectedVersion int64) (*bids.Bid, error) {
	query := `
		UPDATE bids SET
			amount = $3, quantity = $4,
			message_text = $5, message_lang = $6, message_translated = $7,
			status = $8,
			counter_amount = $9, counter_quantity = $10, counter_message = $11, counter_created_at = $12,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING ` + bidColumns

	var msgText, msgLang *string
	var translated []byte
	if bid.Message != nil {
		msgText = &bid.Message.Text
		if bid.Message.Language != "" {
			msgLang = &bid.Message.Language
		}
		translated = bid.Message.Translated
	}
	var coAmount, coQuantity *int64
	var coMessage *string
	var coCreatedAt *time.Time
	if bid.CounterOffer != nil {
		coAmount = &bid.CounterOffer.Amount
		coQuantity = &bid.CounterOffer.Quantity
		if bid.CounterOffer.Message != "" {
			coMessage = &bid.CounterOffer.Message
		}
		coCreatedAt = &bid.CounterOffer.CreatedAt
	}

	stored, err := scanBid(s.pool.QueryRow(ctx, query,
		bid.ID, expectedVersion,
		bid.Amount, bid.Quantity,
		msgText, msgLang, translated,
		bid.Status,
		coAmount, coQuantity, coMessage, coCreatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing bid from a lost CAS race.
			var exists bool
			checkErr := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bids WHERE id = $1)`, bid.ID).Scan(&exists)
			if checkErr != nil {
				return nil, fmt.Errorf("failed to check bid existence: %w", checkErr)
			}
			if !exists {
				return nil, bids.ErrBidNotFound
			}
			return nil, bids.ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to update bid: %w", err)
	}
	return stored, nil
}

// FindActiveByBuyerAndProduct returns the buyer's active bid on the product,
// or (nil, nil) when there is none
func (s *PostgresBidStore) FindActiveByBuyerAndProduct(ctx context.Context, buyerID, productID uuid.UUID) (*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE buyer_id = $1 AND product_id = $2 AND status IN ('pending', 'countered')
	`
	bid, err := scanBid(s.pool.QueryRow(ctx, query, buyerID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active bid: %w", err)
	}
	return bid, nil
}

// ListByProduct returns all bids on a product ordered by amount descending,
// then created_at ascending
func (s *PostgresBidStore) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE product_id = $1
		ORDER BY amount DESC, created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()
	return collectBids(rows)
}

// ListByParty returns all bids where the user is the given party
func (s *PostgresBidStore) ListByParty(ctx context.Context, userID uuid.UUID, role bids.Role) ([]*bids.Bid, error) {
	column := "buyer_id"
	if role == bids.RoleSeller {
		column = "seller_id"
	}
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE ` + column + ` = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()
	return collectBids(rows)
}

// ListStaleActive returns up to limit active bids created before olderThan
func (s *PostgresBidStore) ListStaleActive(ctx context.Context, olderThan time.Time, limit int) ([]*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE status IN ('pending', 'countered') AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale bids: %w", err)
	}
	defer rows.Close()
	return collectBids(rows)
}

func insertArgs(bid *bids.Bid) []any {
	var msgText, msgLang *string
	var translated []byte
	if bid.Message != nil {
		msgText = &bid.Message.Text
		if bid.Message.Language != "" {
			msgLang = &bid.Message.Language
		}
		translated = bid.Message.Translated
	}
	var coAmount, coQuantity *int64
	var coMessage *string
	var coCreatedAt *time.Time
	if bid.CounterOffer != nil {
		coAmount = &bid.CounterOffer.Amount
		coQuantity = &bid.CounterOffer.Quantity
		if bid.CounterOffer.Message != "" {
			coMessage = &bid.CounterOffer.Message
		}
		coCreatedAt = &bid.CounterOffer.CreatedAt
	}
	return []any{
		bid.ID, bid.ProductID, bid.BuyerID, bid.SellerID, bid.Amount, bid.Quantity,
		msgText, msgLang, translated, bid.Status,
		coAmount, coQuantity, coMessage, coCreatedAt,
		bid.Version, bid.CreatedAt, bid.UpdatedAt,
	}
}

func scanBid(row pgx.Row) (*bids.Bid, error) {
	var bid bids.Bid
	var msgText, msgLang *string
	var translated []byte
	var coAmount, coQuantity *int64
	var coMessage *string
	var coCreatedAt *time.Time

	err := row.Scan(
		&bid.ID, &bid.ProductID, &bid.BuyerID, &bid.SellerID, &bid.Amount, &bid.Quantity,
		&msgText, &msgLang, &translated, &bid.Status,
		&coAmount, &coQuantity, &coMessage, &coCreatedAt,
		&bid.Version, &bid.CreatedAt, &bid.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if msgText != nil {
		msg := &bids.Message{Text: *msgText}
		if msgLang != nil {
			msg.Language = *msgLang
		}
		if translated != nil {
			msg.Translated = json.RawMessage(translated)
		}
		bid.Message = msg
	}
	if coAmount != nil && coQuantity != nil && coCreatedAt != nil {
		co := &bids.CounterOffer{
			Amount:    *coAmount,
			Quantity:  *coQuantity,
			CreatedAt: *coCreatedAt,
		}
		if coMessage != nil {
			co.Message = *coMessage
		}
		bid.CounterOffer = co
	}
	return &bid, nil
}

func collectBids(rows pgx.Rows) ([]*bids.Bid, error) {
	var result []*bids.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return result, nil
}
