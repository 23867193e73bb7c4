package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector_DefaultNamespace(t *testing.T) {
	c := NewCollector("")
	c.RecordNoMatch()

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "dispatcher_dispatch_no_match_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected dispatcher_dispatch_no_match_total to be registered")
	}
}

func TestCollector_Dispatch(t *testing.T) {
	c := NewCollector("test")

	c.RecordDispatch("handlers.Mint", OutcomeCompleted, 5*time.Millisecond)
	c.RecordDispatch("handlers.Mint", OutcomeCompleted, 7*time.Millisecond)
	c.RecordDispatch("handlers.Mint", OutcomeFailed, time.Millisecond)
	c.RecordNoMatch()

	if got := testutil.ToFloat64(c.dispatchTotal.WithLabelValues("handlers.Mint", OutcomeCompleted)); got != 2 {
		t.Errorf("completed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.dispatchTotal.WithLabelValues("handlers.Mint", OutcomeFailed)); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.noMatchTotal); got != 1 {
		t.Errorf("no match = %v, want 1", got)
	}
}

func TestCollector_InFlight(t *testing.T) {
	c := NewCollector("test")

	c.IncInFlight("handlers.Burn")
	c.IncInFlight("handlers.Burn")
	c.DecInFlight("handlers.Burn")
	if got := testutil.ToFloat64(c.dispatchInFlight.WithLabelValues("handlers.Burn")); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}

	c.RecordWorkerPermits(3, 7)
	if testutil.ToFloat64(c.workerActive) != 3 || testutil.ToFloat64(c.workerWaiting) != 7 {
		t.Error("worker gauges not set")
	}
}

func TestCollector_WalletAndHTTP(t *testing.T) {
	c := NewCollector("test")

	c.RecordWalletLookup("memory", 3, 2, time.Millisecond, nil)
	c.RecordWalletLookup("postgres", 1, 0, time.Millisecond, errors.New("down"))
	if got := testutil.ToFloat64(c.walletMatched); got != 2 {
		t.Errorf("matched = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.walletLookups.WithLabelValues("postgres", "error")); got != 1 {
		t.Errorf("postgres errors = %v, want 1", got)
	}

	c.IncHTTPInFlight()
	c.RecordHTTPRequest("POST", "/v1/dispatch", "200", 2*time.Millisecond)
	c.DecHTTPInFlight()

	expected := `
# HELP test_http_requests_total HTTP requests by method, route and status
# TYPE test_http_requests_total counter
test_http_requests_total{method="POST",path="/v1/dispatch",status="200"} 1
`
	if err := testutil.CollectAndCompare(c.httpRequests, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestNoOp(t *testing.T) {
	var r Recorder = NoOp{}
	r.RecordNoMatch()
	r.RecordDispatch("h", OutcomeTimeout, time.Second)
	r.RecordWalletLookup("memory", 1, 1, time.Second, nil)
	r.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
}
