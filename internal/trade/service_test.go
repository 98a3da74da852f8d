package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/account"
	"github.com/atmx/paper-engine/internal/auth"
	"github.com/atmx/paper-engine/internal/execution"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/oracle"
	"github.com/atmx/paper-engine/internal/store"
	"github.com/atmx/paper-engine/internal/trade"
	"github.com/atmx/paper-engine/internal/valuation"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testEnv struct {
	engine *account.Engine
	store  *store.MemoryStore
	prices *oracle.StaticSource
	router chi.Router
}

// newTestEnv creates a Service over an in-memory store and static prices,
// mounted on a chi router that resolves users from the X-User-ID header.
func newTestEnv(t *testing.T, hub *trade.WSHub) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	prices := oracle.NewStaticSource(map[string]decimal.Decimal{"XYZ": d("50")})
	o := oracle.NewRetrying(prices, 1, 0)
	v, err := execution.NewValidator(execution.DefaultSlippageRate)
	if err != nil {
		t.Fatal(err)
	}

	cfg := account.Config{
		Store:     ms,
		Oracle:    o,
		Validator: v,
		Valuation: valuation.New(o, valuation.PolicyZero),
	}
	if hub != nil {
		cfg.Notifier = hub
	}
	engine, err := account.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	svc := trade.NewService(engine, "test")

	r := chi.NewRouter()
	r.Get("/", svc.Info)
	r.Get("/health", svc.Info)
	r.Route("/api/paper", func(r chi.Router) {
		r.Use(auth.Middleware(auth.NewHeader("")))
		r.Get("/account", svc.GetAccount)
		r.Post("/order", svc.PlaceOrder)
		r.Post("/reset", svc.Reset)
		r.Get("/orders", svc.ListOrders)
		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}
	})

	return &testEnv{engine: engine, store: ms, prices: prices, router: r}
}

func (env *testEnv) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func doOrder(t *testing.T, env *testEnv, user string, req model.OrderRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/api/paper/order", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", user)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httpReq)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (%s)", v, err, w.Body.String())
	}
	return v
}

// --- Info ---

func TestInfo(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/", "/health"} {
		w := env.do(t, "GET", path, "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		info := decode[trade.InfoResponse](t, w)
		if info.Service != trade.ServiceName || info.Status != "running" || info.Version != "test" {
			t.Errorf("%s: unexpected info %+v", path, info)
		}
	}
}

// --- Account ---

func TestGetAccount_CreatesOnFirstAccess(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "GET", "/api/paper/account", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	view := decode[trade.AccountView](t, w)
	if view.UserID != "alice" {
		t.Errorf("expected userId alice, got %q", view.UserID)
	}
	if !view.Cash.Equal(d("100000")) {
		t.Errorf("expected cash 100000, got %s", view.Cash)
	}
	if !view.TotalValue.Equal(d("100000")) || !view.TotalPL.IsZero() {
		t.Errorf("fresh account totals wrong: value=%s pl=%s", view.TotalValue, view.TotalPL)
	}
	if view.Positions == nil || view.Orders == nil {
		t.Error("positions and orders must encode as empty arrays")
	}
	if !strings.Contains(w.Body.String(), `"positions":[]`) {
		t.Errorf("expected empty positions array in %s", w.Body.String())
	}
}

func TestGetAccount_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/paper/account", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestGetAccount_Valuation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/api/paper/account", "alice", "")

	w := doOrder(t, env, "alice", model.OrderRequest{Ticker: "XYZ", Type: model.OrderTypeMarket, Side: model.SideBuy, Quantity: d("10")})
	if w.Code != http.StatusOK {
		t.Fatalf("order failed: %d %s", w.Code, w.Body.String())
	}
	env.prices.Set("XYZ", d("60"))

	view := decode[trade.AccountView](t, env.do(t, "GET", "/api/paper/account", "alice", ""))
	if len(view.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(view.Positions))
	}
	p := view.Positions[0]
	if !p.UnrealizedPL.Equal(d("99.5")) {
		t.Errorf("expected unrealized P&L 99.5, got %s", p.UnrealizedPL)
	}
	if !p.MarketValue.Equal(d("600")) || !p.CurrentPrice.Equal(d("60")) || !p.PriceAvailable {
		t.Errorf("unexpected valuation %+v", p)
	}
	if !view.TotalValue.Equal(d("100099.5")) {
		t.Errorf("expected total value 100099.5, got %s", view.TotalValue)
	}
	if len(view.Orders) != 1 || view.Orders[0].ID != "order_1" {
		t.Errorf("expected order_1 in history, got %+v", view.Orders)
	}
}

// --- Orders ---

func TestPlaceOrder_Filled(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/api/paper/account", "alice", "")

	w := env.do(t, "POST", "/api/paper/order", "alice",
		`{"ticker":"xyz","type":"market","side":"buy","quantity":10}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	res := decode[model.OrderResult](t, w)
	if res.Status != model.StatusFilled || res.OrderID != "order_1" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.FilledPrice == nil || !res.FilledPrice.Equal(d("50.05")) {
		t.Errorf("expected fill at 50.05, got %v", res.FilledPrice)
	}
	if res.Message != "order filled at $50.05" {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestPlaceOrder_RejectedIs200(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/api/paper/account", "alice", "")

	w := env.do(t, "POST", "/api/paper/order", "alice",
		`{"ticker":"XYZ","type":"limit","side":"buy","quantity":"1","limitPrice":"40"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	res := decode[model.OrderResult](t, w)
	if res.Status != model.StatusRejected || res.Message != execution.ReasonNotFavorable {
		t.Errorf("unexpected result %+v", res)
	}
	if res.OrderID != "" {
		t.Errorf("rejections carry no order id, got %q", res.OrderID)
	}
	if strings.Contains(w.Body.String(), "filledPrice") {
		t.Errorf("rejection must omit filledPrice: %s", w.Body.String())
	}
}

func TestPlaceOrder_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/api/paper/account", "alice", "")

	bodies := []string{
		`not json`,
		`{"ticker":"XYZ","type":"market","side":"short","quantity":1}`,
		`{"ticker":"XYZ","type":"stop","side":"buy","quantity":1}`,
		`{"ticker":"XYZ","type":"market","side":"buy","quantity":0}`,
		`{"ticker":"","type":"market","side":"buy","quantity":1}`,
		`{"ticker":"XYZ","type":"limit","side":"buy","quantity":1,"limitPrice":-5}`,
	}
	for _, body := range bodies {
		w := env.do(t, "POST", "/api/paper/order", "alice", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestPlaceOrder_UnknownAccountIs404(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "POST", "/api/paper/order", "ghost",
		`{"ticker":"XYZ","type":"market","side":"buy","quantity":1}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "GET", "/api/paper/orders", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"orders":[]`) {
		t.Errorf("expected empty orders array, got %s", w.Body.String())
	}

	env.do(t, "GET", "/api/paper/account", "alice", "")
	doOrder(t, env, "alice", model.OrderRequest{Ticker: "XYZ", Type: model.OrderTypeMarket, Side: model.SideBuy, Quantity: d("2")})
	doOrder(t, env, "alice", model.OrderRequest{Ticker: "XYZ", Type: model.OrderTypeMarket, Side: model.SideSell, Quantity: d("1")})

	resp := decode[trade.OrdersResponse](t, env.do(t, "GET", "/api/paper/orders", "alice", ""))
	if len(resp.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(resp.Orders))
	}
	if resp.Orders[0].ID != "order_1" || resp.Orders[1].ID != "order_2" {
		t.Errorf("orders out of sequence: %s, %s", resp.Orders[0].ID, resp.Orders[1].ID)
	}
}

// --- Reset ---

func TestReset(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/api/paper/account", "alice", "")
	doOrder(t, env, "alice", model.OrderRequest{Ticker: "XYZ", Type: model.OrderTypeMarket, Side: model.SideBuy, Quantity: d("10")})

	w := env.do(t, "POST", "/api/paper/reset", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[trade.ResetResponse](t, w)
	if resp.Message != "Account reset successfully" || !resp.StartingCash.Equal(d("100000")) {
		t.Errorf("unexpected reset response %+v", resp)
	}

	acct, err := env.store.Load(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !acct.Cash.Equal(d("100000")) || len(acct.Positions) != 0 || len(acct.Orders) != 0 {
		t.Errorf("account not reset: %+v", acct)
	}
}

// --- Isolation ---

func TestUsersAreIsolated(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/api/paper/account", "alice", "")
	env.do(t, "GET", "/api/paper/account", "bob", "")

	doOrder(t, env, "alice", model.OrderRequest{Ticker: "XYZ", Type: model.OrderTypeMarket, Side: model.SideBuy, Quantity: d("10")})

	view := decode[trade.AccountView](t, env.do(t, "GET", "/api/paper/account", "bob", ""))
	if !view.Cash.Equal(d("100000")) || len(view.Positions) != 0 {
		t.Errorf("bob's account changed by alice's order: %+v", view)
	}
}
