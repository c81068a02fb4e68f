package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/santokhan/authkit"
)

type fakeSource struct {
	snapshot authkit.MetricsSnapshot
}

func (f *fakeSource) MetricsSnapshot() authkit.MetricsSnapshot { return f.snapshot }

func newSource() *fakeSource {
	return &fakeSource{
		snapshot: authkit.MetricsSnapshot{
			Counters: map[authkit.MetricID]uint64{
				authkit.MetricLoginSuccess: 5,
				authkit.MetricAccessDenied: 2,
				authkit.MetricAuditDropped: 7,
			},
			Histograms: map[authkit.MetricID][]uint64{
				authkit.MetricAuthenticateLatency: {1, 2, 0, 0, 0, 0, 0, 3},
			},
		},
	}
}

func gather(t *testing.T, src Source) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCollectorCounters(t *testing.T) {
	families := gather(t, newSource())

	cases := map[string]float64{
		"authkit_login_success_total": 5,
		"authkit_access_denied_total": 2,
		"authkit_logout_total":        0,
		"authkit_audit_dropped_total": 7,
	}
	for name, want := range cases {
		f, ok := families[name]
		if !ok {
			t.Fatalf("missing family %s", name)
		}
		if got := f.GetMetric()[0].GetCounter().GetValue(); got != want {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	families := gather(t, newSource())

	f, ok := families["authkit_authenticate_latency_seconds"]
	if !ok {
		t.Fatal("missing latency histogram")
	}
	h := f.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 6 {
		t.Fatalf("sample count = %d, want 6", h.GetSampleCount())
	}
	buckets := h.GetBucket()
	if len(buckets) != 7 {
		t.Fatalf("expected 7 finite buckets, got %d", len(buckets))
	}
	if buckets[0].GetCumulativeCount() != 1 || buckets[1].GetCumulativeCount() != 3 || buckets[6].GetCumulativeCount() != 3 {
		t.Fatalf("unexpected bucket counts %v", buckets)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	h, err := Handler(newSource())
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if rr.Code != 200 {
		t.Fatalf("status %d", rr.Code)
	}
	if !strings.Contains(string(body), "authkit_login_success_total 5") {
		t.Fatalf("exposition missing counter:\n%s", body)
	}
}

func TestCollectorWithEngine(t *testing.T) {
	var engine *authkit.Engine
	families := gather(t, engine)
	if f := families["authkit_login_success_total"]; f == nil || f.GetMetric()[0].GetCounter().GetValue() != 0 {
		t.Fatal("expected zero counters from a nil engine")
	}
}
