package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrTransactionNotFound = errors.New("order_transaction_not_found")
	ErrDeliveryNotFound    = errors.New("order_delivery_not_found")
)

type Order struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	ChannelID     string       `json:"channel_id" gorm:"type:text;not null;index"`
	Number        string       `json:"number" gorm:"type:text;not null"`
	CustomerName  string       `json:"customer_name" gorm:"type:text;not null"`
	CustomerEmail string       `json:"customer_email" gorm:"type:text;not null"`
	Currency      string       `json:"currency" gorm:"type:text;not null"`
	TotalAmount   int64        `json:"total_amount" gorm:"not null"`
	// WebhookLockedAt is the advisory lock stamp written by the order lock
	// manager. Serialization comes from the surrounding transaction, the stamp
	// is diagnostic.
	WebhookLockedAt *time.Time `json:"webhook_locked_at"`
	CreatedAt       time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"not null"`

	Transactions []OrderTransaction `json:"transactions" gorm:"foreignKey:OrderID"`
	Deliveries   []OrderDelivery    `json:"deliveries" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

// LastTransaction returns the most recent order transaction, or nil.
func (o *Order) LastTransaction() *OrderTransaction {
	if o == nil || len(o.Transactions) == 0 {
		return nil
	}
	return &o.Transactions[len(o.Transactions)-1]
}

// LastDelivery returns the most recent order delivery, or nil.
func (o *Order) LastDelivery() *OrderDelivery {
	if o == nil || len(o.Deliveries) == 0 {
		return nil
	}
	return &o.Deliveries[len(o.Deliveries)-1]
}

type OrderTransaction struct {
	ID          snowflake.ID     `json:"id" gorm:"primaryKey"`
	OrderID     snowflake.ID     `json:"order_id" gorm:"not null;index"`
	State       TransactionState `json:"state" gorm:"type:text;not null"`
	TotalAmount int64            `json:"total_amount" gorm:"not null"`
	CreatedAt   time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"not null"`
}

func (OrderTransaction) TableName() string { return "order_transactions" }

type OrderDelivery struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrderID   snowflake.ID  `json:"order_id" gorm:"not null;index"`
	State     DeliveryState `json:"state" gorm:"type:text;not null"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time     `json:"updated_at" gorm:"not null"`
}

func (OrderDelivery) TableName() string { return "order_deliveries" }

type DeliveryState string

const (
	DeliveryStateOpen      DeliveryState = "open"
	DeliveryStateHeld      DeliveryState = "held"
	DeliveryStateShipped   DeliveryState = "shipped"
	DeliveryStateCancelled DeliveryState = "cancelled"
)

type Repository interface {
	FindOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*OrderTransaction, error)
	UpdateTransactionState(ctx context.Context, db *gorm.DB, id snowflake.ID, state TransactionState) error
	UpdateDeliveryState(ctx context.Context, db *gorm.DB, id snowflake.ID, state DeliveryState) error
	StampWebhookLock(ctx context.Context, db *gorm.DB, orderID snowflake.ID, at time.Time) error
}
