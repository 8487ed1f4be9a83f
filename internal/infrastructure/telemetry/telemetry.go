// Package telemetry wraps the OpenTelemetry tracer and meter used by the server.
// Without a configured SDK the global providers are no-ops.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "mosaicod"

// Instruments holds the tracer and the counters of the server
type Instruments struct {
	tracer trace.Tracer

	requests      metric.Int64Counter
	errors        metric.Int64Counter
	duration      metric.Float64Histogram
	chunksWritten metric.Int64Counter
	bytesWritten  metric.Int64Counter
	chunksRead    metric.Int64Counter
}

// New creates instruments from the global providers
func New(version string) (*Instruments, error) {
	meter := otel.Meter(instrumentationName, metric.WithInstrumentationVersion(version))
	in := &Instruments{
		tracer: otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(version)),
	}

	var err error
	if in.requests, err = meter.Int64Counter("mosaicod.requests.total",
		metric.WithDescription("Total number of requests processed"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if in.errors, err = meter.Int64Counter("mosaicod.errors.total",
		metric.WithDescription("Total number of failed requests"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if in.duration, err = meter.Float64Histogram("mosaicod.request.duration",
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if in.chunksWritten, err = meter.Int64Counter("mosaicod.chunks.written",
		metric.WithDescription("Chunks committed by bulk writes"),
		metric.WithUnit("{chunk}")); err != nil {
		return nil, err
	}
	if in.bytesWritten, err = meter.Int64Counter("mosaicod.bytes.written",
		metric.WithDescription("Stored payload bytes committed by bulk writes"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if in.chunksRead, err = meter.Int64Counter("mosaicod.chunks.read",
		metric.WithDescription("Chunks streamed by bulk reads"),
		metric.WithUnit("{chunk}")); err != nil {
		return nil, err
	}
	return in, nil
}

// Noop returns instruments bound to the global providers, ignoring setup errors
func Noop() *Instruments {
	in, err := New("dev")
	if err != nil {
		return &Instruments{tracer: otel.Tracer(instrumentationName)}
	}
	return in
}

// Track starts a span and returns the function that ends it
func (in *Instruments) Track(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := in.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	opts := metric.WithAttributes(append(attrs, attribute.String("operation", name))...)
	if in.requests != nil {
		in.requests.Add(ctx, 1, opts)
	}

	return ctx, func(err error) {
		if in.duration != nil {
			in.duration.Record(ctx, time.Since(start).Seconds(), opts)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if in.errors != nil {
				in.errors.Add(ctx, 1, metric.WithAttributes(
					attribute.String("operation", name),
					attribute.String("error.type", fmt.Sprintf("%T", err)),
				))
			}
		}
		span.End()
	}
}

// ChunkWritten records a committed chunk
func (in *Instruments) ChunkWritten(ctx context.Context, topic string, size int64) {
	attrs := metric.WithAttributes(attribute.String("topic", topic))
	if in.chunksWritten != nil {
		in.chunksWritten.Add(ctx, 1, attrs)
	}
	if in.bytesWritten != nil {
		in.bytesWritten.Add(ctx, size, attrs)
	}
}

// ChunkRead records a streamed chunk
func (in *Instruments) ChunkRead(ctx context.Context, topic string) {
	if in.chunksRead != nil {
		in.chunksRead.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
	}
}
