package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("verba_pairs_added_total", "Pairs added", nil)

	c.Inc()
	c.Add(2)
	if got := c.Value(); got != 3 {
		t.Errorf("expected counter value 3, got %f", got)
	}
}

func TestGauge(t *testing.T) {
	r := NewMetricsRegistry()
	g := r.NewGauge("verba_requests_in_flight", "In-flight requests", nil)

	g.Inc()
	g.Inc()
	g.Dec()
	if got := g.Value(); got != 1 {
		t.Errorf("expected gauge value 1, got %f", got)
	}
	g.Set(5)
	if got := g.Value(); got != 5 {
		t.Errorf("expected gauge value 5, got %f", got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("verba_search_duration_seconds", "Search latency", nil, []float64{0.1, 1})

	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(2)

	if h.count != 3 {
		t.Errorf("expected count 3, got %d", h.count)
	}
	if h.counts[0] != 1 {
		t.Errorf("expected 1 observation <= 0.1, got %d", h.counts[0])
	}
	if h.counts[1] != 2 {
		t.Errorf("expected 2 observations <= 1, got %d", h.counts[1])
	}
}

func TestHistogramObserveDuration(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("verba_op_duration_seconds", "Op latency", nil, nil)

	h.ObserveDuration(time.Now().Add(-10 * time.Millisecond))
	if h.count != 1 {
		t.Errorf("expected one observation, got %d", h.count)
	}
	if h.sum <= 0 {
		t.Errorf("expected positive duration sum, got %f", h.sum)
	}
}

func TestHandler_PrometheusText(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("verba_requests_total", "Total requests", map[string]string{"endpoint": "pairs"})
	c.Add(7)
	h := r.NewHistogram("verba_request_duration_seconds", "Request latency", nil, []float64{0.5})
	h.Observe(0.2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	for _, want := range []string{
		"# TYPE verba_requests_total counter",
		`verba_requests_total{endpoint="pairs"} 7`,
		"# TYPE verba_request_duration_seconds histogram",
		`verba_request_duration_seconds_bucket{le="0.5"} 1`,
		`verba_request_duration_seconds_bucket{le="+Inf"} 1`,
		"verba_request_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}
