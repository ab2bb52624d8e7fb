// Package observe carries the observability plumbing of route-tts:
// OpenTelemetry metrics and traces, trace-aware slog records, and the HTTP
// middleware that ties them to each request.
//
// Instruments are created through the OpenTelemetry Metrics API and scraped
// through the Prometheus bridge set up by [InitProvider]. Library code falls
// back to [DefaultMetrics]; tests build their own with [NewMetrics] over a
// ManualReader.
package observe

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every route-tts instrument.
const meterName = "github.com/Jellypod-Inc/route-tts"

// Metrics groups the instruments of one meter provider. The instruments are
// safe for concurrent use.
type Metrics struct {
	// TTSDuration is the latency of one adapter call, by provider.
	TTSDuration metric.Float64Histogram
	// GenerationDuration is the latency of one whole speech list.
	GenerationDuration metric.Float64Histogram
	// ProviderRequests counts adapter calls by provider, kind and status.
	ProviderRequests metric.Int64Counter
	// ProviderErrors counts failed adapter calls by provider and kind.
	ProviderErrors metric.Int64Counter
	// Blocks counts synthesised blocks by platform and mode
	// ("grouped" or "standalone").
	Blocks metric.Int64Counter
	// GroupsFlushed counts stitched groups sent to a conditioning platform.
	GroupsFlushed metric.Int64Counter
	// ActiveGenerations is the number of speech lists in flight.
	ActiveGenerations metric.Int64UpDownCounter
	// HTTPRequestDuration is the server latency by method and route.
	HTTPRequestDuration metric.Float64Histogram
}

// Vendor calls rarely exceed thirty seconds; whole lists run sequentially
// and can take minutes.
var (
	latencyBuckets    = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30}
	generationBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
)

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	var errs []error
	seconds := func(name, desc string, buckets ...float64) metric.Float64Histogram {
		opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
		if len(buckets) > 0 {
			opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
		}
		h, err := meter.Float64Histogram(name, opts...)
		errs = append(errs, err)
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	m := &Metrics{
		TTSDuration:         seconds("routetts.tts.duration", "Latency of a single text-to-speech provider call.", latencyBuckets...),
		GenerationDuration:  seconds("routetts.generation.duration", "Latency of a full speech list generation.", generationBuckets...),
		HTTPRequestDuration: seconds("routetts.http.request.duration", "HTTP request latency by method and route."),
		ProviderRequests:    counter("routetts.provider.requests", "Provider API requests by provider, kind and status."),
		ProviderErrors:      counter("routetts.provider.errors", "Provider errors by provider and kind."),
		Blocks:              counter("routetts.blocks", "Speech blocks synthesised by platform and mode."),
		GroupsFlushed:       counter("routetts.groups.flushed", "Request-stitching groups flushed by platform."),
	}
	var err error
	m.ActiveGenerations, err = meter.Int64UpDownCounter("routetts.active_generations",
		metric.WithDescription("Number of in-flight speech generations."))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] on the global meter
// provider, created on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		if defaultMetrics, err = NewMetrics(otel.GetMeterProvider()); err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest counts one adapter call with its outcome.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordProviderError counts one failed adapter call.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordTTSDuration records the latency of one adapter call in seconds.
func (m *Metrics) RecordTTSDuration(ctx context.Context, provider string, seconds float64) {
	m.TTSDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordBlock counts one synthesised speech block.
func (m *Metrics) RecordBlock(ctx context.Context, platform, mode string) {
	m.Blocks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("mode", mode),
	))
}

// RecordGroupFlush counts one flushed request-stitching group.
func (m *Metrics) RecordGroupFlush(ctx context.Context, platform string) {
	m.GroupsFlushed.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
}
