package otel

import (
	"context"
	"testing"

	"github.com/santokhan/authkit"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	snapshot authkit.MetricsSnapshot
}

func (f *fakeSource) MetricsSnapshot() authkit.MetricsSnapshot { return f.snapshot }

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Value
				}
			}
		}
	}
	return out
}

func TestExporterCollectsSnapshot(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	src := &fakeSource{
		snapshot: authkit.MetricsSnapshot{
			Counters: map[authkit.MetricID]uint64{
				authkit.MetricLoginSuccess:   3,
				authkit.MetricRefreshRevoked: 1,
				authkit.MetricAuditDropped:   4,
			},
			Histograms: map[authkit.MetricID][]uint64{
				authkit.MetricAuthenticateLatency: {2, 1, 0, 0, 0, 0, 0, 1},
			},
		},
	}

	exp, err := NewExporter(provider.Meter("authkit-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	got := collect(t, reader)
	want := map[string]int64{
		"authkit_login_success_total":                         3,
		"authkit_refresh_revoked_total":                       1,
		"authkit_logout_total":                                0,
		"authkit_audit_dropped_total":                         4,
		"authkit_authenticate_latency_seconds_bucket_le_0_01": 3,
		"authkit_authenticate_latency_seconds_bucket_le_inf":  4,
		"authkit_authenticate_latency_seconds_count":          4,
	}
	for name, v := range want {
		if got[name] != v {
			t.Fatalf("%s = %d, want %d", name, got[name], v)
		}
	}
}

func TestExporterCloseStopsCallback(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	src := &fakeSource{snapshot: authkit.MetricsSnapshot{Counters: map[authkit.MetricID]uint64{authkit.MetricAuditDropped: 1}}}

	exp, err := NewExporter(provider.Meter("authkit-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := collect(t, reader); len(got) != 0 {
		t.Fatalf("expected no observations after Close, got %v", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(provider.Meter("x"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	var exp *Exporter
	if err := exp.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}
