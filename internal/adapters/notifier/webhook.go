// Package notifier delivers post-commit transaction events to an external
// sink. Delivery is fire-and-forget: a full queue or a failed request is
// logged and dropped, never surfaced to the caller.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/finvolv/balance_backend/internal/core/domain"
	portssvc "github.com/finvolv/balance_backend/internal/core/ports/services"
)

const deliveryTimeout = 5 * time.Second

// WebhookNotifier posts transaction events as JSON to a configured endpoint
// from a single background worker. With no endpoint configured it only logs
// the events, which keeps local setups working without a sink.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger

	events chan domain.TransactionEvent
	once   sync.Once
	done   chan struct{}
}

// NewWebhookNotifier creates the gateway and starts its delivery worker.
func NewWebhookNotifier(url string, buffer int, logger *slog.Logger) *WebhookNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	n := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: deliveryTimeout},
		logger: logger,
		events: make(chan domain.TransactionEvent, buffer),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

var _ portssvc.NotifierGateway = (*WebhookNotifier)(nil)

// Notify enqueues the event without blocking. Events are dropped with a log
// line when the queue is full.
func (n *WebhookNotifier) Notify(event domain.TransactionEvent) {
	select {
	case n.events <- event:
	default:
		n.logger.Warn("notifier queue full, dropping event",
			slog.String("transaction_id", event.TransactionID),
			slog.String("trace_id", event.TraceID),
		)
	}
}

// Close stops accepting events and drains the queue.
func (n *WebhookNotifier) Close() {
	n.once.Do(func() {
		close(n.events)
		<-n.done
	})
}

func (n *WebhookNotifier) run() {
	defer close(n.done)
	for event := range n.events {
		n.deliver(event)
	}
}

func (n *WebhookNotifier) deliver(event domain.TransactionEvent) {
	logger := n.logger.With(
		slog.String("transaction_id", event.TransactionID),
		slog.String("trace_id", event.TraceID),
	)

	if n.url == "" {
		logger.Info("transaction event",
			slog.String("event_type", event.EventType),
			slog.String("user_id", event.UserID),
			slog.String("amount", event.Amount.String()),
			slog.String("new_balance", event.NewBalance.String()),
		)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to marshal transaction event", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		logger.Error("failed to build notifier request", slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", event.TraceID)

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warn("transaction event delivery failed", slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Warn("transaction event rejected by sink", slog.Int("status", resp.StatusCode))
	}
}
