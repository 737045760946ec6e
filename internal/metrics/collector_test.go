package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordInvocation(t *testing.T) {
	c := NewCollector()

	c.RecordInvocation("flush", true, 10*time.Millisecond)
	c.RecordInvocation("flush", false, 10*time.Millisecond)
	c.RecordInvocation("policy", true, time.Millisecond)

	if got := testutil.ToFloat64(c.invocationsTotal.WithLabelValues("flush", "success")); got != 1 {
		t.Errorf("flush success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.invocationsTotal.WithLabelValues("flush", "failure")); got != 1 {
		t.Errorf("flush failure = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.invocationDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestCommandsAndGauge(t *testing.T) {
	c := NewCollector()
	c.RecordCommand("allow")
	c.RecordCommand("allow")
	c.SetAllowedIPs(3)

	if got := testutil.ToFloat64(c.commandsTotal.WithLabelValues("allow")); got != 2 {
		t.Errorf("allow commands = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.allowedIPs); got != 3 {
		t.Errorf("allowed ips = %v, want 3", got)
	}
}

func TestServeHTTP(t *testing.T) {
	c := NewCollector()
	c.SetAllowedIPs(1)

	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "kalafw_allowed_ips 1") {
		t.Fatalf("metrics output missing gauge:\n%s", rec.Body.String())
	}
}
