// Package observe provides application-wide observability primitives for
// the grievance bot: OpenTelemetry metrics, tracing helpers, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all grievbot metrics.
const meterName = "github.com/bontonsw/grievbot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DialogTransitions counts dialogue step changes. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...), attribute.String("channel", ...)
	DialogTransitions metric.Int64Counter

	// ServiceCallDuration tracks complaint-service call latency. Use with attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	ServiceCallDuration metric.Float64Histogram

	// ComplaintsFiled counts complaints created through the API. Use with attributes:
	//   attribute.String("channel", ...), attribute.String("issue_type", ...)
	ComplaintsFiled metric.Int64Counter

	// SMSSent counts outbound SMS notification attempts. Use with attribute:
	//   attribute.String("status", ...)
	SMSSent metric.Int64Counter

	// ActiveSessions tracks the number of live dialogue sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// local service calls and short HTTP requests.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.DialogTransitions, err = m.Int64Counter("grievbot.dialog.transitions",
		metric.WithDescription("Total dialogue step transitions by from-step, to-step, and channel."),
	); err != nil {
		return nil, err
	}
	if met.ComplaintsFiled, err = m.Int64Counter("grievbot.complaints.filed",
		metric.WithDescription("Total complaints filed by channel and issue type."),
	); err != nil {
		return nil, err
	}
	if met.SMSSent, err = m.Int64Counter("grievbot.sms.sent",
		metric.WithDescription("Total SMS notification attempts by status."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.ServiceCallDuration, err = m.Float64Histogram("grievbot.service.call.duration",
		metric.WithDescription("Latency of complaint-service calls by operation and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("grievbot.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("grievbot.sessions.active",
		metric.WithDescription("Number of live dialogue sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
