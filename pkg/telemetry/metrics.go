package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Load outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
	OutcomeFallback   = "fallback"
	OutcomeCanceled   = "canceled"
)

var (
	metricsOnce        sync.Once
	metricsInitErr     error
	loadCounter        metric.Int64Counter
	supersededCounter  metric.Int64Counter
	fallbackCounter    metric.Int64Counter
	loadLatency        metric.Float64Histogram
	loadRecordsCounter metric.Int64Counter
)

// LoadMetrics captures the fields needed to record one widget load.
type LoadMetrics struct {
	Widget   string
	Source   string
	Outcome  string
	Duration time.Duration
	Records  int
}

// RecordLoadMetrics emits counters and histograms that describe a widget load.
func RecordLoadMetrics(ctx context.Context, m LoadMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("widget.name", m.Widget),
		attribute.String("source.name", m.Source),
		attribute.String("load.outcome", m.Outcome),
	}

	loadCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.Duration > 0 {
		loadLatency.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if m.Records > 0 {
		loadRecordsCounter.Add(ctx, int64(m.Records), metric.WithAttributes(attrs...))
	}

	switch m.Outcome {
	case OutcomeSuperseded:
		supersededCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	case OutcomeFallback:
		fallbackCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("shelf.catalog")

		loadCounter, metricsInitErr = meter.Int64Counter(
			"shelf.widget.loads_total",
			metric.WithDescription("Widget loads partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		supersededCounter, metricsInitErr = meter.Int64Counter(
			"shelf.widget.superseded_total",
			metric.WithDescription("Responses discarded because a newer load was issued"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		fallbackCounter, metricsInitErr = meter.Int64Counter(
			"shelf.widget.fallback_total",
			metric.WithDescription("Failed loads served from the last snapshot"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		loadRecordsCounter, metricsInitErr = meter.Int64Counter(
			"shelf.widget.records_total",
			metric.WithDescription("Records received by widget loads"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		loadLatency, metricsInitErr = meter.Float64Histogram(
			"shelf.widget.load_duration_ms",
			metric.WithDescription("Observed widget load latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
