package stacfed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/stacfed/internal/domain/reconcile"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	records    *prometheus.CounterVec
	upstream   *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stacfed",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stacfed",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stacfed",
			Subsystem: "sdk",
			Name:      "reconciled_records_total",
			Help:      "Records seen by client-side filtering, by outcome (kept, rejected, unsourced).",
		}, []string{"outcome"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stacfed",
			Subsystem: "sdk",
			Name:      "upstream_errors_total",
			Help:      "Per-catalog errors reported inside otherwise successful pages.",
		}, []string{"catalog"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.records); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.upstream); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("stacfed: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("stacfed: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// Operation statuses. A server answer is split by class so a misconfigured
// client (4xx) is told apart from a failing federation (5xx).
const (
	statusOK          = "ok"
	statusCanceled    = "canceled"
	statusClientError = "client_error"
	statusServerError = "server_error"
	statusTransport   = "transport"
)

func operationStatus(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return statusCanceled
	case errors.As(err, &apiErr) && apiErr.Status >= http.StatusInternalServerError:
		return statusServerError
	case errors.As(err, &apiErr):
		return statusClientError
	default:
		return statusTransport
	}
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := operationStatus(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	switch status {
	case statusOK:
		o.logger.Debug("operation completed", "op", op, "duration", dur)
	case statusClientError, statusCanceled:
		o.logger.Info("operation rejected", "op", op, "status", status, "duration", dur, "error", err)
	default:
		o.logger.Warn("operation failed", "op", op, "status", status, "duration", dur, "error", err)
	}
}

// page records what client-side filtering did to one page and which catalogs
// reported errors inside it.
func (o *observer) page(res reconcile.Result, errs []FederatedError) {
	if o == nil {
		return
	}
	kept := len(res.Records)
	rejected := res.Rejected()

	if o.metrics != nil {
		o.metrics.records.WithLabelValues("kept").Add(float64(kept))
		o.metrics.records.WithLabelValues("rejected").Add(float64(rejected))
		o.metrics.records.WithLabelValues("unsourced").Add(float64(res.Unsourced))
		for _, e := range errs {
			o.metrics.upstream.WithLabelValues(e.CatalogURL).Inc()
		}
	}
	if o.logger == nil {
		return
	}
	if rejected > 0 || res.Unsourced > 0 {
		o.logger.Debug("records filtered", "kept", kept, "rejected", rejected, "unsourced", res.Unsourced)
	}
	for _, e := range errs {
		o.logger.Info("catalog reported an error", "catalog", e.CatalogURL, "error", e.Message)
	}
}
