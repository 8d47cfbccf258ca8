package http

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/freekieb7/pebble/http"

var outcomeKey = attribute.Key("pebble.outcome")

// Connection outcomes reported on pebble.server.outcomes.
const (
	outcomeBadRequest     = "bad_request"
	outcomeNotFound       = "not_found"
	outcomeHandled        = "handled"
	outcomeHandlerError   = "handler_error"
	outcomeTransportError = "transport_error"
)

type instruments struct {
	tracer      trace.Tracer
	connections metric.Int64Counter
	outcomes    metric.Int64Counter
	duration    metric.Float64Histogram
	active      *xsync.Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(instrumentationName)
	inst := &instruments{
		tracer: tp.Tracer(instrumentationName),
		active: xsync.NewCounter(),
	}

	var err error
	inst.connections, err = meter.Int64Counter("pebble.server.connections",
		metric.WithDescription("Number of accepted connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}

	inst.outcomes, err = meter.Int64Counter("pebble.server.outcomes",
		metric.WithDescription("Number of finished connections by outcome"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}

	inst.duration, err = meter.Float64Histogram("pebble.server.connection.duration",
		metric.WithDescription("Time from accept to close"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge("pebble.server.active_connections",
		metric.WithDescription("Connections currently owned by a worker"),
		metric.WithUnit("{connection}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(inst.active.Value())
			return nil
		}))
	if err != nil {
		return nil, err
	}

	return inst, nil
}

func (inst *instruments) finish(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(outcomeKey.String(outcome))
	inst.outcomes.Add(ctx, 1, attrs)
	inst.duration.Record(ctx, seconds, attrs)
}
