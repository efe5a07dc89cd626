package license

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the license instruments. A nil *Metrics records nothing.
type Metrics struct {
	activations       metric.Int64Counter
	statusChecks      metric.Int64Counter
	rollbacks         metric.Int64Counter
	issued            metric.Int64Counter
	operationDuration metric.Float64Histogram
}

// NewMetrics creates the license instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.activations, err = meter.Int64Counter(
		"license_activations_total",
		metric.WithDescription("License activation attempts by result and error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activations counter: %w", err)
	}

	m.statusChecks, err = meter.Int64Counter(
		"license_status_checks_total",
		metric.WithDescription("License status determinations by resulting status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create status checks counter: %w", err)
	}

	m.rollbacks, err = meter.Int64Counter(
		"license_rollback_detected_total",
		metric.WithDescription("Status checks where the clock was behind the last seen date"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rollback counter: %w", err)
	}

	m.issued, err = meter.Int64Counter(
		"license_issued_total",
		metric.WithDescription("Licenses issued by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create issued counter: %w", err)
	}

	m.operationDuration, err = meter.Float64Histogram(
		"license_operation_duration_seconds",
		metric.WithDescription("Duration of license operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) recordActivation(ctx context.Context, err error) {
	if m == nil {
		return
	}
	result, kind := "success", "none"
	if err != nil {
		result, kind = "failure", string(KindOf(err))
	}
	m.activations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) recordStatus(ctx context.Context, status Status) {
	if m == nil {
		return
	}
	m.statusChecks.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
}

func (m *Metrics) recordRollback(ctx context.Context) {
	if m == nil {
		return
	}
	m.rollbacks.Add(ctx, 1)
}

func (m *Metrics) recordIssued(ctx context.Context, deadline time.Time) {
	if m == nil {
		return
	}
	m.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", deadlineKind(deadline))))
}

func (m *Metrics) recordDuration(ctx context.Context, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.operationDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", operation)))
}

func deadlineKind(deadline time.Time) string {
	if IsPermanent(deadline) {
		return "permanent"
	}
	return "trial"
}
