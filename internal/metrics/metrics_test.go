package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
		}
	}

	out := scrape(t)
	want := `paper_http_requests_total{method="GET",path="/things/{id}",status="418"} 2`
	if !strings.Contains(out, want) {
		t.Errorf("missing %q in scrape output", want)
	}
	if strings.Contains(out, `path="/things/a"`) {
		t.Error("raw path leaked into labels")
	}
}

func TestObserveOrder(t *testing.T) {
	ObserveOrder("buy", "market", "filled", time.Now())

	out := scrape(t)
	if !strings.Contains(out, `paper_orders_total{side="buy",status="filled",type="market"}`) {
		t.Error("order counter not exported")
	}
	if !strings.Contains(out, `paper_order_latency_seconds_count{side="buy"}`) {
		t.Error("order latency not exported")
	}
}

func TestStatusWriterHijackUnsupported(t *testing.T) {
	w := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if _, _, err := w.Hijack(); err == nil {
		t.Error("expected hijack error on recorder")
	}
	if w.Unwrap() == nil {
		t.Error("Unwrap returned nil")
	}
}
