package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/routerlabs/dexrouter/internal/domain"
	"github.com/routerlabs/dexrouter/internal/service"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (domain.Order, error)
	GetStatus(ctx context.Context, orderID string) (domain.OrderWithTransitions, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Order, error)
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// executeRequest is the JSON body accepted by the execute endpoint.
type executeRequest struct {
	Pair              string  `json:"pair"`
	Side              string  `json:"side"`
	Amount            float64 `json:"amount"`
	SlippageTolerance float64 `json:"slippage_tolerance"`
}

// executeResponse acknowledges an accepted order. Execution continues
// asynchronously; clients follow progress over the returned websocket URL.
type executeResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	WSURL   string `json:"ws_url"`
}

// orderResponse is the JSON view of an order.
type orderResponse struct {
	ID                string  `json:"id"`
	Pair              string  `json:"pair"`
	Side              string  `json:"side"`
	Amount            float64 `json:"amount"`
	SlippageTolerance float64 `json:"slippage_tolerance"`
	Status            string  `json:"status"`
	Venue             string  `json:"venue,omitempty"`
	QuotedPrice       float64 `json:"quoted_price,omitempty"`
	TxHash            string  `json:"tx_hash,omitempty"`
	ExecutedPrice     float64 `json:"executed_price,omitempty"`
	Error             string  `json:"error,omitempty"`
	CreatedAt         string  `json:"created_at,omitempty"`
	UpdatedAt         string  `json:"updated_at,omitempty"`
}

type transitionResponse struct {
	FromState string         `json:"from_state"`
	ToState   string         `json:"to_state"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type orderDetailResponse struct {
	orderResponse
	Transitions []transitionResponse `json:"transitions"`
}

func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		Pair:              o.Pair,
		Side:              string(o.Side),
		Amount:            o.Amount,
		SlippageTolerance: o.SlippageTolerance,
		Status:            string(o.Status),
		Venue:             o.Venue,
		QuotedPrice:       o.QuotedPrice,
		TxHash:            o.TxHash,
		ExecutedPrice:     o.ExecutedPrice,
		Error:             o.Error,
	}
	if !o.CreatedAt.IsZero() {
		resp.CreatedAt = o.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !o.UpdatedAt.IsZero() {
		resp.UpdatedAt = o.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// ExecuteOrder accepts a new order for asynchronous execution.
// POST /api/orders/execute
func (h *OrderHandler) ExecuteOrder(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	order, err := h.orders.Submit(r.Context(), service.SubmitRequest{
		Pair:              req.Pair,
		Side:              domain.OrderSide(req.Side),
		Amount:            req.Amount,
		SlippageTolerance: req.SlippageTolerance,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: execute order failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to accept order")
		return
	}

	writeJSON(w, http.StatusCreated, executeResponse{
		OrderID: order.ID,
		Status:  string(order.Status),
		WSURL:   "/ws/orders/" + order.ID,
	})
}

// GetOrder returns the current state of an order including its transition
// history.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	rec, err := h.orders.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	resp := orderDetailResponse{
		orderResponse: toOrderResponse(rec.Order),
		Transitions:   make([]transitionResponse, 0, len(rec.Transitions)),
	}
	for _, t := range rec.Transitions {
		resp.Transitions = append(resp.Transitions, transitionResponse{
			FromState: string(t.FromState),
			ToState:   string(t.ToState),
			Payload:   t.Payload,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
}

// ListOrders returns the most recently created orders.
// GET /api/orders?limit=50
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	resp := listOrdersResponse{Orders: make([]orderResponse, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}

	writeJSON(w, http.StatusOK, resp)
}
