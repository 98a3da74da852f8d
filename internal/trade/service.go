// Package trade provides the HTTP handlers for the paper trading API:
// account views, order placement, resets and order history, plus the
// WebSocket hub that streams fills.
//
// All monetary values use shopspring/decimal, never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/account"
	"github.com/atmx/paper-engine/internal/auth"
	"github.com/atmx/paper-engine/internal/model"
)

// ServiceName is reported by the info endpoints.
const ServiceName = "paper-engine"

// Service exposes an account.Engine over HTTP. Routes must sit behind
// auth.Middleware.
type Service struct {
	engine  *account.Engine
	version string
}

// NewService creates a new HTTP service over engine.
func NewService(engine *account.Engine, version string) *Service {
	return &Service{engine: engine, version: version}
}

// --- Request/Response types ---

// InfoResponse is returned by GET / and GET /health.
type InfoResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// AccountView is the JSON body for GET /api/paper/account: the stored
// account marked to market.
type AccountView struct {
	UserID         string                    `json:"userId"`
	Cash           decimal.Decimal           `json:"cash"`
	StartingCash   decimal.Decimal           `json:"startingCash"`
	Positions      []model.PositionValuation `json:"positions"`
	Orders         []model.OrderRecord       `json:"orders"`
	CreatedAt      time.Time                 `json:"createdAt"`
	TotalValue     decimal.Decimal           `json:"totalValue"`
	TotalPL        decimal.Decimal           `json:"totalPL"`
	TotalPLPercent decimal.Decimal           `json:"totalPLPercent"`
	ValuedAt       time.Time                 `json:"valuedAt"`
}

// ResetResponse is the JSON body returned from POST /api/paper/reset.
type ResetResponse struct {
	Message      string          `json:"message"`
	StartingCash decimal.Decimal `json:"startingCash"`
}

// OrdersResponse is the JSON body for GET /api/paper/orders.
type OrdersResponse struct {
	Orders []model.OrderRecord `json:"orders"`
}

// --- HTTP Handlers ---

// Info handles GET / and GET /health.
func (s *Service) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Service: ServiceName,
		Status:  "running",
		Version: s.version,
	})
}

// GetAccount handles GET /api/paper/account.
// Creates the account on first access.
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	acct, snap, err := s.engine.View(r.Context(), userID)
	if err != nil {
		s.writeEngineError(w, "load account", userID, err)
		return
	}

	orders := acct.Orders
	if orders == nil {
		orders = []model.OrderRecord{}
	}
	writeJSON(w, http.StatusOK, AccountView{
		UserID:         acct.UserID,
		Cash:           snap.Cash,
		StartingCash:   snap.StartingCash,
		Positions:      snap.Positions,
		Orders:         orders,
		CreatedAt:      acct.CreatedAt,
		TotalValue:     snap.TotalValue,
		TotalPL:        snap.TotalPL,
		TotalPLPercent: snap.TotalPLPercent,
		ValuedAt:       snap.ValuedAt,
	})
}

// PlaceOrder handles POST /api/paper/order.
// Trading rejections are 200 with status "rejected"; malformed requests are
// 400 and an account that was never opened is 404.
func (s *Service) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.engine.PlaceOrder(r.Context(), userID, req)
	if err != nil {
		s.writeEngineError(w, "place order", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Reset handles POST /api/paper/reset.
func (s *Service) Reset(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	acct, err := s.engine.Reset(r.Context(), userID)
	if err != nil {
		s.writeEngineError(w, "reset account", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, ResetResponse{
		Message:      "Account reset successfully",
		StartingCash: acct.StartingCash,
	})
}

// ListOrders handles GET /api/paper/orders.
func (s *Service) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	orders, err := s.engine.Orders(r.Context(), userID)
	if err != nil {
		s.writeEngineError(w, "list orders", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, OrdersResponse{Orders: orders})
}

// writeEngineError maps engine errors onto HTTP status codes.
func (s *Service) writeEngineError(w http.ResponseWriter, op, userID string, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidOrder), errors.Is(err, account.ErrInvalidUser):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, account.ErrAccountNotFound):
		writeError(w, "account not found", http.StatusNotFound)
	default:
		slog.Error(op+" failed", "user", userID, "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
