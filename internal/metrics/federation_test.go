package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()

	if !registered {
		t.Fatal("expected metrics to be registered")
	}
}

func TestUpstreamRequestsTotal_Labels(t *testing.T) {
	UpstreamRequestsTotal.WithLabelValues("https://stac.test", "collections", "200").Inc()

	got := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("https://stac.test", "collections", "200"))
	if got < 1 {
		t.Errorf("expected upstream_requests_total >= 1, got %f", got)
	}
}
