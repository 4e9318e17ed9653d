package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/routerlabs/dexrouter/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts a new order into the database.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, pair, side, amount, slippage_tolerance, status,
			venue, quoted_price, tx_hash, executed_price, error,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.Pair, string(o.Side), o.Amount, o.SlippageTolerance,
		string(o.Status),
		nullStr(o.Venue), nullFloat(o.QuotedPrice),
		nullStr(o.TxHash), nullFloat(o.ExecutedPrice), nullStr(o.Error),
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

// UpdateStatus changes the status of an existing order and writes any fields
// present in the update. Nil update fields are left untouched.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, u domain.OrderUpdate) error {
	const query = `
		UPDATE orders SET
			status = $1,
			venue = COALESCE($2, venue),
			quoted_price = COALESCE($3, quoted_price),
			tx_hash = COALESCE($4, tx_hash),
			executed_price = COALESCE($5, executed_price),
			error = COALESCE($6, error),
			updated_at = NOW()
		WHERE id = $7`

	tag, err := s.pool.Exec(ctx, query,
		string(status), u.Venue, u.QuotedPrice, u.TxHash, u.ExecutedPrice, u.Error, id)
	if err != nil {
		return fmt.Errorf("postgres: update order status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const orderSelectCols = `id, pair, side, amount, slippage_tolerance, status,
	venue, quoted_price, tx_hash, executed_price, error,
	created_at, updated_at`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Order, error) {
	var o domain.Order
	var side, status string
	var venue, txHash, errMsg *string
	var quotedPrice, executedPrice *float64

	err := scanner.Scan(
		&o.ID, &o.Pair, &side, &o.Amount, &o.SlippageTolerance, &status,
		&venue, &quotedPrice, &txHash, &executedPrice, &errMsg,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	if venue != nil {
		o.Venue = *venue
	}
	if quotedPrice != nil {
		o.QuotedPrice = *quotedPrice
	}
	if txHash != nil {
		o.TxHash = *txHash
	}
	if executedPrice != nil {
		o.ExecutedPrice = *executedPrice
	}
	if errMsg != nil {
		o.Error = *errMsg
	}
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID retrieves a single order together with its transition history.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.OrderWithTransitions, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderWithTransitions{}, domain.ErrNotFound
		}
		return domain.OrderWithTransitions{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}

	transitions, err := s.ListTransitions(ctx, id)
	if err != nil {
		return domain.OrderWithTransitions{}, err
	}
	return domain.OrderWithTransitions{Order: o, Transitions: transitions}, nil
}

// ListRecent returns the most recently created orders, newest first.
func (s *OrderStore) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent orders: %w", err)
	}
	return orders, nil
}

// AppendTransition records one entry in an order's transition history.
func (s *OrderStore) AppendTransition(ctx context.Context, t domain.StatusTransition) error {
	var payload []byte
	if t.Payload != nil {
		var err error
		payload, err = json.Marshal(t.Payload)
		if err != nil {
			return fmt.Errorf("postgres: marshal transition payload: %w", err)
		}
	}

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO status_transitions (order_id, from_state, to_state, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		t.OrderID, string(t.FromState), string(t.ToState), payload, createdAt)
	if err != nil {
		return fmt.Errorf("postgres: append transition for %s: %w", t.OrderID, err)
	}
	return nil
}

// ListTransitions returns an order's transition history in insertion order.
func (s *OrderStore) ListTransitions(ctx context.Context, orderID string) ([]domain.StatusTransition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, from_state, to_state, payload, created_at
		 FROM status_transitions
		 WHERE order_id = $1
		 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transitions for %s: %w", orderID, err)
	}
	defer rows.Close()

	var transitions []domain.StatusTransition
	for rows.Next() {
		var t domain.StatusTransition
		var fromState, toState string
		var payload []byte

		if err := rows.Scan(&t.ID, &t.OrderID, &fromState, &toState, &payload, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan transition for %s: %w", orderID, err)
		}
		t.FromState = domain.OrderStatus(fromState)
		t.ToState = domain.OrderStatus(toState)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t.Payload); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal transition payload for %s: %w", orderID, err)
			}
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

// ListTerminalBefore returns confirmed or failed orders created strictly
// before the cutoff, oldest first.
func (s *OrderStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE status IN ('confirmed', 'failed') AND created_at < $1
		 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan terminal orders: %w", err)
	}
	return orders, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
