// Package metrics holds the engine's metric instruments, created once from
// the global meter provider.
package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the planning engine's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal    metric.Int64Counter
	HTTPRequestDuration  metric.Float64Histogram
	PlanRequestsTotal    metric.Int64Counter
	PlanDurationSeconds  metric.Float64Histogram
	OracleRequestsTotal  metric.Int64Counter
	OracleFailuresTotal  metric.Int64Counter
	OracleLatencySeconds metric.Float64Histogram
	FallbackDraftsTotal  metric.Int64Counter
	CatalogQuerySeconds  metric.Float64Histogram
	CatalogErrorsTotal   metric.Int64Counter
	ScheduleRepairsTotal metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments from the global meter provider.
// Before the provider is configured the global default is a no-op, so early
// callers get inert instruments instead of a panic.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("wanderplan")
		m := &AppMetrics{}

		var err error
		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		logInstrumentErr("http_requests_total", err)

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		logInstrumentErr("http_request_duration_seconds", err)

		m.PlanRequestsTotal, err = meter.Int64Counter(
			"plan_requests_total",
			metric.WithDescription("Total number of tour planning requests"),
			metric.WithUnit("{request}"),
		)
		logInstrumentErr("plan_requests_total", err)

		m.PlanDurationSeconds, err = meter.Float64Histogram(
			"plan_duration_seconds",
			metric.WithDescription("End-to-end duration of tour planning calls"),
			metric.WithUnit("s"),
		)
		logInstrumentErr("plan_duration_seconds", err)

		m.OracleRequestsTotal, err = meter.Int64Counter(
			"oracle_requests_total",
			metric.WithDescription("Total number of LLM draft requests"),
			metric.WithUnit("{request}"),
		)
		logInstrumentErr("oracle_requests_total", err)

		m.OracleFailuresTotal, err = meter.Int64Counter(
			"oracle_failures_total",
			metric.WithDescription("LLM draft requests that failed or timed out"),
			metric.WithUnit("{error}"),
		)
		logInstrumentErr("oracle_failures_total", err)

		m.OracleLatencySeconds, err = meter.Float64Histogram(
			"oracle_latency_seconds",
			metric.WithDescription("Latency of LLM draft requests"),
			metric.WithUnit("s"),
		)
		logInstrumentErr("oracle_latency_seconds", err)

		m.FallbackDraftsTotal, err = meter.Int64Counter(
			"fallback_drafts_total",
			metric.WithDescription("Plans served from the deterministic fallback draft"),
			metric.WithUnit("{draft}"),
		)
		logInstrumentErr("fallback_drafts_total", err)

		m.CatalogQuerySeconds, err = meter.Float64Histogram(
			"catalog_query_duration_seconds",
			metric.WithDescription("Duration of catalog queries in seconds"),
			metric.WithUnit("s"),
		)
		logInstrumentErr("catalog_query_duration_seconds", err)

		m.CatalogErrorsTotal, err = meter.Int64Counter(
			"catalog_query_errors_total",
			metric.WithDescription("Total number of catalog query errors"),
			metric.WithUnit("{error}"),
		)
		logInstrumentErr("catalog_query_errors_total", err)

		m.ScheduleRepairsTotal, err = meter.Int64Counter(
			"schedule_repairs_total",
			metric.WithDescription("Schedule invariant repairs applied by the post-processor"),
			metric.WithUnit("{repair}"),
		)
		logInstrumentErr("schedule_repairs_total", err)

		appMetrics = m
	})
}

func logInstrumentErr(name string, err error) {
	if err != nil {
		log.Printf("metrics: failed to create %s: %v", name, err)
	}
}

// Get returns the shared instruments, creating them on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
