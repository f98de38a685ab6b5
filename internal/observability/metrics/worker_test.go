package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestObserveQueueLag(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.ObserveQueueLag(2 * time.Second)
	// Negative lag from clock skew is dropped, not recorded as zero.
	m.ObserveQueueLag(-time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	if !strings.Contains(body, `dap_worker_queue_lag_seconds_count{service="worker"} 1`) {
		t.Fatalf("expected exactly one lag observation, got:\n%s", body)
	}
	if !strings.Contains(body, `dap_worker_queue_lag_seconds_sum{service="worker"} 2`) {
		t.Fatalf("expected lag sum of 2 seconds, got:\n%s", body)
	}
}
