package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot goAccess.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goAccess.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters:   map[goAccess.MetricID]uint64{},
			Histograms: map[goAccess.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(c); n != 0 {
		t.Fatalf("expected no metrics for disabled engine, got %d", n)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters: map[goAccess.MetricID]uint64{
				goAccess.MetricLoginSuccess:  7,
				goAccess.MetricAccountLocked: 2,
			},
			Histograms: map[goAccess.MetricID][]uint64{
				goAccess.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 3,
	})

	expected := `
# HELP goaccess_login_success_total Successful authentications.
# TYPE goaccess_login_success_total counter
goaccess_login_success_total 7
# HELP goaccess_account_locked_total Accounts transitioned into the locked state.
# TYPE goaccess_account_locked_total counter
goaccess_account_locked_total 2
# HELP goaccess_audit_dropped_total Audit events dropped because the dispatcher buffer was full.
# TYPE goaccess_audit_dropped_total counter
goaccess_audit_dropped_total 3
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"goaccess_login_success_total", "goaccess_account_locked_total", "goaccess_audit_dropped_total")
	if err != nil {
		t.Fatalf("unexpected collector output: %v", err)
	}

	if n := testutil.CollectAndCount(c, "goaccess_authenticate_latency_seconds"); n != 1 {
		t.Fatalf("expected one latency histogram, got %d", n)
	}
}

func TestHandlerServesHistogramBuckets(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters: map[goAccess.MetricID]uint64{goAccess.MetricLoginSuccess: 1},
			Histograms: map[goAccess.MetricID][]uint64{
				goAccess.MetricAuthenticateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `goaccess_authenticate_latency_seconds_bucket{le="0.005"} 1`) {
		t.Fatalf("expected first bucket in output, got:\n%s", body)
	}
	if !strings.Contains(body, `goaccess_authenticate_latency_seconds_bucket{le="0.5"} 7`) {
		t.Fatalf("expected cumulative 0.5 bucket in output, got:\n%s", body)
	}
	if !strings.Contains(body, `goaccess_authenticate_latency_seconds_count 8`) {
		t.Fatalf("expected histogram count in output, got:\n%s", body)
	}
}

func TestCollectorReadsMetricsSnapshot(t *testing.T) {
	m := goAccess.NewMetrics(goAccess.MetricsConfig{Enabled: true})
	m.Inc(goAccess.MetricTenantJoined)
	m.Inc(goAccess.MetricTenantJoined)

	c := NewCollectorFromSource(fakeSource{snapshot: m.Snapshot()})

	expected := `
# HELP goaccess_tenant_joined_total Tenant memberships created or accepted.
# TYPE goaccess_tenant_joined_total counter
goaccess_tenant_joined_total 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "goaccess_tenant_joined_total"); err != nil {
		t.Fatalf("unexpected collector output: %v", err)
	}
	// latency histograms are off, so only counters and the drop counter are emitted
	if n := testutil.CollectAndCount(c, "goaccess_authenticate_latency_seconds"); n != 0 {
		t.Fatalf("expected no latency histogram, got %d", n)
	}
}
