package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/routerlabs/dexrouter/internal/domain"
)

// OrderArchiveStore provides the read access the archiver needs. The
// Postgres order store satisfies it implicitly.
type OrderArchiveStore interface {
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Order, error)
	ListTransitions(ctx context.Context, orderID string) ([]domain.StatusTransition, error)
}

// OrderArchiver implements domain.Archiver by querying terminal orders older
// than a cutoff, serializing each order with its transition history to JSONL,
// and uploading the result to S3.
//
// Deletion of archived records from the primary store is intentionally not
// performed here; that is a separate, explicit step once the archive has been
// verified.
type OrderArchiver struct {
	writer domain.BlobWriter
	orders OrderArchiveStore
}

var _ domain.Archiver = (*OrderArchiver)(nil)

// NewOrderArchiver creates a new OrderArchiver.
func NewOrderArchiver(writer domain.BlobWriter, orders OrderArchiveStore) *OrderArchiver {
	return &OrderArchiver{
		writer: writer,
		orders: orders,
	}
}

// archivedOrder is the JSONL record uploaded per order.
type archivedOrder struct {
	ID                string                    `json:"id"`
	Pair              string                    `json:"pair"`
	Side              domain.OrderSide          `json:"side"`
	Amount            float64                   `json:"amount"`
	SlippageTolerance float64                   `json:"slippage_tolerance"`
	Status            domain.OrderStatus        `json:"status"`
	Venue             string                    `json:"venue,omitempty"`
	QuotedPrice       float64                   `json:"quoted_price,omitempty"`
	TxHash            string                    `json:"tx_hash,omitempty"`
	ExecutedPrice     float64                   `json:"executed_price,omitempty"`
	Error             string                    `json:"error,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	Transitions       []domain.StatusTransition `json:"transitions"`
}

// ArchiveOrders uploads all terminal orders created before the cutoff to
// archive/orders/YYYY-MM-DD.jsonl and returns the number of archived orders.
// An empty result set skips the upload.
func (a *OrderArchiver) ArchiveOrders(ctx context.Context, before time.Time) (int, error) {
	orders, err := a.orders.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, o := range orders {
		transitions, err := a.orders.ListTransitions(ctx, o.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive order %s transitions: %w", o.ID, err)
		}
		rec := archivedOrder{
			ID:                o.ID,
			Pair:              o.Pair,
			Side:              o.Side,
			Amount:            o.Amount,
			SlippageTolerance: o.SlippageTolerance,
			Status:            o.Status,
			Venue:             o.Venue,
			QuotedPrice:       o.QuotedPrice,
			TxHash:            o.TxHash,
			ExecutedPrice:     o.ExecutedPrice,
			Error:             o.Error,
			CreatedAt:         o.CreatedAt,
			Transitions:       transitions,
		}
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("s3blob: archive order %s marshal: %w", o.ID, err)
		}
	}

	path := fmt.Sprintf("archive/orders/%s.jsonl", before.UTC().Format("2006-01-02"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	return len(orders), nil
}
