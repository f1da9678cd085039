package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCounters(t *testing.T) {
	m := New()
	m.ObserveTurn("tool")
	m.ObserveTurn("tool")
	m.ObserveToolCall("get_customer_invoices", "ok")
	m.ObserveGeneration("decision", 120*time.Millisecond, nil)
	m.ObserveGeneration("response", time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(m.Turns.WithLabelValues("tool")); got != 2 {
		t.Fatalf("expected 2 tool turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("get_customer_invoices", "ok")); got != 1 {
		t.Fatalf("expected 1 tool call, got %v", got)
	}
	if got := testutil.CollectAndCount(m.Generations); got != 2 {
		t.Fatalf("expected 2 generation series, got %d", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTurn("reply")
	m.ObserveToolCall("x", "ok")
	m.ObserveGeneration("decision", time.Second, nil)
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/api/chat", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `bakeassist_http_requests_total{method="POST",route="/api/chat",status="200"} 1`) {
		t.Fatalf("expected http counter in exposition, got:\n%s", body)
	}
}
