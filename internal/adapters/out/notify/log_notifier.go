// Package notify contains the outbound notification fan-out and the
// compliance service client.
package notify

import (
	"context"
	"log/slog"

	"orderflow/internal/core/domain/model/kernel"
)

// SlogNotifier publishes lifecycle events to the structured log. Delivery
// is best effort: a notification can never fail the business operation
// that produced it.
type SlogNotifier struct {
	logger *slog.Logger
}

// NewSlogNotifier creates a notifier writing to the given logger.
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger.With("component", "notifier")}
}

// Notify emits one event record.
func (n *SlogNotifier) Notify(ctx context.Context, event string, orderID kernel.UUID, payload map[string]any) {
	attrs := make([]any, 0, 2+2*len(payload))
	attrs = append(attrs, "event", event, "order_id", orderID.String())
	for key, value := range payload {
		attrs = append(attrs, key, value)
	}
	n.logger.InfoContext(ctx, "order event", attrs...)
}
