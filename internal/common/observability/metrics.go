package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Pipeline stages timed by RecordStageDuration.
const (
	StageNormalize = "normalize"
	StageUpsert    = "upsert"
	StageMirror    = "mirror"
	StageDelete    = "delete"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	messageCount  otelmetric.Int64Counter
	stageDuration otelmetric.Float64Histogram
}

// New registers an OpenTelemetry meter provider exporting through the
// default Prometheus registry. On exporter failure the returned value is
// a no-op recorder and the error is reported.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithProvider(provider, serviceName), nil
}

// NewWithReader builds an Observability over an explicit reader. Used in tests.
func NewWithReader(reader metric.Reader, serviceName string) *Observability {
	return newWithProvider(metric.NewMeterProvider(metric.WithReader(reader)), serviceName)
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	messageCount, _ := meter.Int64Counter(
		"grants.pipeline.messages",
		otelmetric.WithDescription("Number of grant messages processed, by outcome"),
	)

	stageDuration, _ := meter.Float64Histogram(
		"grants.stage.duration",
		otelmetric.WithDescription("Per-message pipeline stage duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		messageCount:  messageCount,
		stageDuration: stageDuration,
	}
}

func (o *Observability) RecordMessageProcessed(ctx context.Context, outcome string) {
	if o == nil || o.messageCount == nil {
		return
	}
	o.messageCount.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) RecordStageDuration(ctx context.Context, stage string, duration time.Duration, ok bool) {
	if o == nil || o.stageDuration == nil {
		return
	}
	o.stageDuration.Record(ctx, float64(duration.Microseconds())/1000.0, otelmetric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("ok", ok),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
