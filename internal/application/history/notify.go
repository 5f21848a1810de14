package history

import (
	"context"

	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/prometheus"
)

// EventPublisher is satisfied by *kafka.EventPublisher.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, eventType, key string, payload interface{}) error
}

// Notifier announces finished computations.  Publishing is best effort: a
// failure is logged and counted, never returned.
type Notifier struct {
	pub     EventPublisher
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

// NewNotifier returns a Notifier.  A nil publisher makes Notify a no-op.
func NewNotifier(pub EventPublisher, metrics *prometheus.AppMetrics, logger logging.Logger) *Notifier {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Notifier{pub: pub, metrics: metrics, logger: logger}
}

// Enabled reports whether events leave the process.
func (n *Notifier) Enabled() bool { return n != nil && n.pub != nil }

// Notify publishes payload on topic keyed by key.
func (n *Notifier) Notify(ctx context.Context, topic, eventType, key string, payload interface{}) {
	if !n.Enabled() {
		return
	}
	err := n.pub.PublishEvent(ctx, topic, eventType, key, payload)
	prometheus.RecordEventPublished(n.metrics, topic, err)
	if err != nil {
		n.logger.Warn("Failed to publish event",
			logging.String("topic", topic),
			logging.String("event_type", eventType),
			logging.Err(err),
		)
	}
}
