package domain

import "context"

// Entity technical names the gateway uses on its webhook listener payloads.
const (
	EntityPaymentMethodConfiguration = "PaymentMethodConfiguration"
	EntityRefund                     = "Refund"
	EntityTransaction                = "Transaction"
	EntityTransactionInvoice         = "TransactionInvoice"
)

// Event is one parsed webhook delivery. It is immutable after parsing and
// discarded once handled; the gateway entity it points at is the source of
// truth, not the payload.
type Event struct {
	EventID                     int64  `json:"eventId"`
	ListenerEntityTechnicalName string `json:"listenerEntityTechnicalName"`
	SpaceID                     int64  `json:"spaceId"`
	EntityID                    int64  `json:"entityId"`
	Timestamp                   string `json:"timestamp,omitempty"`
}

// Service reconciles local order state from webhook deliveries.
type Service interface {
	// HandleCallback classifies and processes one delivery. A nil error means
	// the delivery is settled from the gateway's point of view; unknown entity
	// types settle as logged no-ops.
	HandleCallback(ctx context.Context, channelID string, event *Event) error
}
