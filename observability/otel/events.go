package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"rocket/core/events"
)

// EventCounter exports a count of committed domain events through the
// global meter provider.
type EventCounter struct {
	counter metric.Int64Counter
}

// NewEventCounter builds the counter on the supplied meter, or on the global
// "rocket" meter when m is nil.
func NewEventCounter(m metric.Meter) (*EventCounter, error) {
	if m == nil {
		m = otel.Meter("rocket")
	}
	counter, err := m.Int64Counter("rocket.events",
		metric.WithDescription("Committed domain events by type."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &EventCounter{counter: counter}, nil
}

// Emit implements events.Emitter.
func (c *EventCounter) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	c.counter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", evt.EventType())))
}
