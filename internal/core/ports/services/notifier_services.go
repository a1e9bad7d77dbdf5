package services

import "github.com/finvolv/balance_backend/internal/core/domain"

// NotifierGateway fans committed-transaction events out to external systems.
// Delivery is best-effort and asynchronous; Notify must never block the
// caller's response path, and failures must never surface to the coordinator.
type NotifierGateway interface {
	Notify(event domain.TransactionEvent)

	// Close stops the gateway and drains any queued events.
	Close()
}
