package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/grandprix"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Availability metrics
	SearchesTotal         metric.Int64Counter
	SearchesRejectedTotal metric.Int64Counter
	StaleResponsesTotal   metric.Int64Counter
	SearchDuration        metric.Float64Histogram
	PollFailuresTotal     metric.Int64Counter

	// Booking metrics
	ReservationsCreatedTotal  metric.Int64Counter
	ReservationsCanceledTotal metric.Int64Counter
	EnrichmentFailuresTotal   metric.Int64Counter

	// Inventory metrics
	StatusChangesTotal    metric.Int64Counter
	ReconcileRefetchTotal metric.Int64Counter

	// Session metrics
	LoginsTotal        metric.Int64Counter
	InvalidationsTotal metric.Int64Counter

	// Transport metrics
	RequestErrorsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// RecordRequestError counts a failed backend call by service and error kind.
func RecordRequestError(ctx context.Context, service, kind string) {
	GetMetrics().RequestErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("kind", kind),
	))
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Availability metrics
	m.SearchesTotal, _ = meter.Int64Counter(
		"grandprix.availability.searches.total",
		metric.WithDescription("Total number of availability searches sent"),
		metric.WithUnit("{search}"),
	)

	m.SearchesRejectedTotal, _ = meter.Int64Counter(
		"grandprix.availability.searches.rejected.total",
		metric.WithDescription("Total number of searches rejected by local filter validation"),
		metric.WithUnit("{search}"),
	)

	m.StaleResponsesTotal, _ = meter.Int64Counter(
		"grandprix.availability.stale_responses.total",
		metric.WithDescription("Total number of search responses discarded because a newer request was issued"),
		metric.WithUnit("{response}"),
	)

	m.SearchDuration, _ = meter.Float64Histogram(
		"grandprix.availability.search.duration",
		metric.WithDescription("Duration of availability searches"),
		metric.WithUnit("ms"),
	)

	m.PollFailuresTotal, _ = meter.Int64Counter(
		"grandprix.availability.poll_failures.total",
		metric.WithDescription("Total number of failed availability polls"),
		metric.WithUnit("{poll}"),
	)

	// Booking metrics
	m.ReservationsCreatedTotal, _ = meter.Int64Counter(
		"grandprix.reservations.created.total",
		metric.WithDescription("Total number of reservations created"),
		metric.WithUnit("{reservation}"),
	)

	m.ReservationsCanceledTotal, _ = meter.Int64Counter(
		"grandprix.reservations.canceled.total",
		metric.WithDescription("Total number of reservations canceled"),
		metric.WithUnit("{reservation}"),
	)

	m.EnrichmentFailuresTotal, _ = meter.Int64Counter(
		"grandprix.reservations.enrichment_failures.total",
		metric.WithDescription("Total number of failed guest or room lookups while enriching reservations"),
		metric.WithUnit("{lookup}"),
	)

	// Inventory metrics
	m.StatusChangesTotal, _ = meter.Int64Counter(
		"grandprix.inventory.status_changes.total",
		metric.WithDescription("Total number of room status changes applied"),
		metric.WithUnit("{change}"),
	)

	m.ReconcileRefetchTotal, _ = meter.Int64Counter(
		"grandprix.inventory.reconcile_refetch.total",
		metric.WithDescription("Total number of catalog refetches after a status change"),
		metric.WithUnit("{refetch}"),
	)

	// Session metrics
	m.LoginsTotal, _ = meter.Int64Counter(
		"grandprix.session.logins.total",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)

	m.InvalidationsTotal, _ = meter.Int64Counter(
		"grandprix.session.invalidations.total",
		metric.WithDescription("Total number of sessions dropped after a rejected token"),
		metric.WithUnit("{session}"),
	)

	// Transport metrics
	m.RequestErrorsTotal, _ = meter.Int64Counter(
		"grandprix.requests.errors.total",
		metric.WithDescription("Total number of failed backend requests by service and kind"),
		metric.WithUnit("{error}"),
	)

	return m
}
