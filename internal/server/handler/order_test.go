package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerlabs/dexrouter/internal/domain"
	"github.com/routerlabs/dexrouter/internal/service"
)

type fakeOrderService struct {
	submitted  []service.SubmitRequest
	submitErr  error
	statusRec  domain.OrderWithTransitions
	statusErr  error
	recent     []domain.Order
	listErr    error
	lastListed int
}

func (f *fakeOrderService) Submit(ctx context.Context, req service.SubmitRequest) (domain.Order, error) {
	if f.submitErr != nil {
		return domain.Order{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return domain.Order{
		ID:     "ord-1",
		Pair:   req.Pair,
		Side:   req.Side,
		Amount: req.Amount,
		Status: domain.OrderStatusPending,
	}, nil
}

func (f *fakeOrderService) GetStatus(ctx context.Context, orderID string) (domain.OrderWithTransitions, error) {
	if f.statusErr != nil {
		return domain.OrderWithTransitions{}, f.statusErr
	}
	return f.statusRec, nil
}

func (f *fakeOrderService) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	f.lastListed = limit
	return f.recent, f.listErr
}

func newTestMux(svc OrderService) *http.ServeMux {
	h := NewOrderHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders/execute", h.ExecuteOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	return mux
}

func TestExecuteOrderAccepted(t *testing.T) {
	svc := &fakeOrderService{}
	mux := newTestMux(svc)

	body := `{"pair":"SOL/USDC","side":"buy","amount":10,"slippage_tolerance":0.02}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp["order_id"])
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, "/ws/orders/ord-1", resp["ws_url"])

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "SOL/USDC", svc.submitted[0].Pair)
}

func TestExecuteOrderRejectsInvalid(t *testing.T) {
	svc := &fakeOrderService{submitErr: domain.ErrInvalidOrder}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/execute",
		strings.NewReader(`{"pair":"","side":"buy","amount":0}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteOrderRejectsBadBody(t *testing.T) {
	mux := newTestMux(&fakeOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/execute", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderReturnsTransitions(t *testing.T) {
	svc := &fakeOrderService{statusRec: domain.OrderWithTransitions{
		Order: domain.Order{ID: "ord-1", Pair: "SOL/USDC", Side: domain.OrderSideBuy,
			Amount: 10, Status: domain.OrderStatusConfirmed, TxHash: "0xabc"},
		Transitions: []domain.StatusTransition{
			{OrderID: "ord-1", FromState: domain.OrderStatusPending, ToState: domain.OrderStatusRouting},
			{OrderID: "ord-1", FromState: domain.OrderStatusRouting, ToState: domain.OrderStatusBuilding},
		},
	}}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		TxHash      string `json:"tx_hash"`
		Transitions []struct {
			FromState string `json:"from_state"`
			ToState   string `json:"to_state"`
		} `json:"transitions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp.ID)
	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, "0xabc", resp.TxHash)
	require.Len(t, resp.Transitions, 2)
	assert.Equal(t, "pending", resp.Transitions[0].FromState)
	assert.Equal(t, "routing", resp.Transitions[1].FromState)
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &fakeOrderService{statusErr: domain.ErrNotFound}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/nope", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersCapsLimit(t *testing.T) {
	svc := &fakeOrderService{recent: []domain.Order{{ID: "a"}, {ID: "b"}}}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders?limit=9999", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, svc.lastListed)

	var resp struct {
		Orders []struct {
			ID string `json:"id"`
		} `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Orders, 2)
}
