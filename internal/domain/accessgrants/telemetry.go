package accessgrants

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "child-development-records/accessgrants"

// instruments usa los providers globales; sin Setup son no-op.
type instruments struct {
	tracer    trace.Tracer
	created   metric.Int64Counter
	claims    metric.Int64Counter
	exhausted metric.Int64Counter
}

func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName)

	return &instruments{
		tracer: otel.Tracer(instrumentationName),
		created: counter(meter, "access_grants.created",
			"Grants emitidos"),
		claims: counter(meter, "access_grants.claims",
			"Intentos de claim por resultado"),
		exhausted: counter(meter, "access_grants.token_generation_exhausted",
			"Creaciones que agotaron el presupuesto de tokens"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func (i *instruments) start(ctx context.Context, name string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, name)
}

func (i *instruments) claim(ctx context.Context, outcome string) {
	i.claims.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
