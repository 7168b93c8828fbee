package push

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/shiftwake/shiftwake/internal/push"

// DeliveryMetrics holds metrics for reminder delivery to the gateway.
type DeliveryMetrics struct {
	deliveryDuration metric.Float64Histogram
	deliveryTotal    metric.Int64Counter
}

// NewDeliveryMetrics creates metrics for monitoring reminder delivery.
func NewDeliveryMetrics() (*DeliveryMetrics, error) {
	meter := otel.Meter(meterName)

	deliveryDuration, err := meter.Float64Histogram(
		"push.delivery.duration",
		metric.WithDescription("Duration of reminder deliveries in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	deliveryTotal, err := meter.Int64Counter(
		"push.delivery.total",
		metric.WithDescription("Total number of reminder deliveries"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, err
	}

	return &DeliveryMetrics{
		deliveryDuration: deliveryDuration,
		deliveryTotal:    deliveryTotal,
	}, nil
}

// RecordDelivery records metrics for one delivery attempt.
func (m *DeliveryMetrics) RecordDelivery(kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("reminder.kind", kind),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Background context: delivery metrics must survive request cancellation
	ctx := context.Background()
	m.deliveryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.deliveryTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
