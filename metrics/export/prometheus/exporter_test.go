package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	careauth "github.com/clinicore/careauth"
)

type staticSource struct {
	snapshot careauth.MetricsSnapshot
	dropped  uint64
}

func (s *staticSource) MetricsSnapshot() careauth.MetricsSnapshot { return s.snapshot }
func (s *staticSource) AuditDropped() uint64                      { return s.dropped }

func TestRenderCounters(t *testing.T) {
	src := &staticSource{
		snapshot: careauth.MetricsSnapshot{
			Counters: map[careauth.MetricID]uint64{
				careauth.MetricLoginSuccess:      7,
				careauth.MetricResetCompleted:    2,
				careauth.MetricTokenRenewSuccess: 11,
			},
			Histograms: map[careauth.MetricID][]uint64{},
		},
	}

	out := NewExporterFromSource(src).Render()

	for _, want := range []string{
		"# TYPE careauth_login_success_total counter",
		"careauth_login_success_total 7",
		"careauth_reset_completed_total 2",
		"careauth_token_renew_success_total 11",
		"careauth_audit_dropped_total 0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderHistogramCumulative(t *testing.T) {
	src := &staticSource{
		snapshot: careauth.MetricsSnapshot{
			Counters: map[careauth.MetricID]uint64{},
			Histograms: map[careauth.MetricID][]uint64{
				careauth.MetricValidateLatency: {3, 1, 0, 0, 0, 0, 0, 2},
			},
		},
	}

	out := NewExporterFromSource(src).Render()

	for _, want := range []string{
		`careauth_validate_latency_seconds_bucket{le="0.005"} 3`,
		`careauth_validate_latency_seconds_bucket{le="0.01"} 4`,
		`careauth_validate_latency_seconds_bucket{le="+Inf"} 6`,
		"careauth_validate_latency_seconds_count 6",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderEmptySource(t *testing.T) {
	src := &staticSource{snapshot: careauth.MetricsSnapshot{
		Counters:   map[careauth.MetricID]uint64{},
		Histograms: map[careauth.MetricID][]uint64{},
	}}
	if out := NewExporterFromSource(src).Render(); out != "" {
		t.Fatalf("expected empty render, got %q", out)
	}

	var nilExp *Exporter
	if out := nilExp.Render(); out != "" {
		t.Fatalf("nil exporter rendered %q", out)
	}
}

func TestHandlerContentType(t *testing.T) {
	src := &staticSource{
		snapshot: careauth.MetricsSnapshot{
			Counters:   map[careauth.MetricID]uint64{careauth.MetricLoginSuccess: 1},
			Histograms: map[careauth.MetricID][]uint64{},
		},
	}
	rec := httptest.NewRecorder()
	NewExporterFromSource(src).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(rec.Body.String(), "careauth_login_success_total 1") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}
