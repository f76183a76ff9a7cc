package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrEntityNotFound  = errors.New("gateway_entity_not_found")
	ErrRequestFailed   = errors.New("gateway_request_failed")
	ErrMissingMetadata = errors.New("gateway_metadata_missing")
)

// TransactionState values reported by the gateway for a transaction.
const (
	TransactionCreate     = "CREATE"
	TransactionPending    = "PENDING"
	TransactionConfirmed  = "CONFIRMED"
	TransactionProcessing = "PROCESSING"
	TransactionAuthorized = "AUTHORIZED"
	TransactionCompleted  = "COMPLETED"
	TransactionFulfill    = "FULFILL"
	TransactionFailed     = "FAILED"
	TransactionDecline    = "DECLINE"
	TransactionVoided     = "VOIDED"
)

// RefundState values reported by the gateway for a refund.
const (
	RefundCreate      = "CREATE"
	RefundScheduled   = "SCHEDULED"
	RefundPending     = "PENDING"
	RefundManualCheck = "MANUAL_CHECK"
	RefundFailed      = "FAILED"
	RefundSuccessful  = "SUCCESSFUL"
)

// InvoiceState values reported by the gateway for a transaction invoice.
const (
	InvoiceCreate        = "CREATE"
	InvoiceOpen          = "OPEN"
	InvoiceOverdue       = "OVERDUE"
	InvoiceCanceled      = "CANCELED"
	InvoicePaid          = "PAID"
	InvoiceDerecognized  = "DERECOGNIZED"
	InvoiceNotApplicable = "NOT_APPLICABLE"
)

// Metadata keys the platform attaches at transaction creation time and the
// gateway echoes back on every entity.
const (
	MetadataOrderID            = "order_id"
	MetadataOrderTransactionID = "order_transaction_id"
)

// Transaction is the gateway's authoritative snapshot of a payment transaction.
type Transaction struct {
	ID       int64             `json:"id"`
	State    string            `json:"state"`
	Amount   int64             `json:"authorizationAmount"`
	Currency string            `json:"currency"`
	MetaData map[string]string `json:"metaData"`
}

// OrderID extracts the local order id echoed back in the metadata.
func (t *Transaction) OrderID() (snowflake.ID, error) {
	return metadataID(t.MetaData, MetadataOrderID)
}

// OrderTransactionID extracts the local order transaction id from the metadata.
func (t *Transaction) OrderTransactionID() (snowflake.ID, error) {
	return metadataID(t.MetaData, MetadataOrderTransactionID)
}

// Refund is the gateway's authoritative snapshot of a refund.
type Refund struct {
	ID          int64        `json:"id"`
	State       string       `json:"state"`
	Amount      int64        `json:"amount"`
	Currency    string       `json:"currency"`
	Transaction *Transaction `json:"transaction"`
}

// TransactionInvoice is the gateway's snapshot of a transaction invoice. The
// parent transaction hangs off the completion's line item version.
type TransactionInvoice struct {
	ID         int64  `json:"id"`
	State      string `json:"state"`
	Amount     int64  `json:"outstandingAmount"`
	Completion struct {
		LineItemVersion struct {
			Transaction *Transaction `json:"transaction"`
		} `json:"lineItemVersion"`
	} `json:"completion"`
}

// ParentTransaction returns the invoice's parent transaction, or nil.
func (i *TransactionInvoice) ParentTransaction() *Transaction {
	if i == nil {
		return nil
	}
	return i.Completion.LineItemVersion.Transaction
}

// PaymentMethodConfiguration is one payment method configured in the gateway space.
type PaymentMethodConfiguration struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	State       string `json:"state"`
	Description string `json:"description"`
	ImageURL    string `json:"resolvedImageUrl"`
}

const PaymentMethodStateActive = "ACTIVE"

// Credentials authenticate one channel against the gateway's read API.
type Credentials struct {
	SpaceID    int64
	UserID     int64
	UserSecret string
}

// Client reads authoritative entity state from the gateway. Implementations
// never mutate remote state.
type Client interface {
	Transaction(ctx context.Context, spaceID, entityID int64) (*Transaction, error)
	Refund(ctx context.Context, spaceID, entityID int64) (*Refund, error)
	TransactionInvoice(ctx context.Context, spaceID, entityID int64) (*TransactionInvoice, error)
	PaymentMethodConfigurations(ctx context.Context, spaceID int64) ([]PaymentMethodConfiguration, error)
}

// ClientFactory builds a client bound to one channel's credentials. The
// factory is resolved once per webhook delivery from the channel settings.
type ClientFactory interface {
	ForCredentials(creds Credentials) Client
}

func metadataID(meta map[string]string, key string) (snowflake.ID, error) {
	raw, ok := meta[key]
	if !ok || raw == "" {
		return 0, ErrMissingMetadata
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, ErrMissingMetadata
	}
	return id, nil
}
