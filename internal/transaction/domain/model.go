package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Snapshot is the locally persisted copy of a gateway transaction.
// ConfirmationSentAt stamps the order confirmation mail so redelivered
// webhooks do not mail twice.
type Snapshot struct {
	ID                   snowflake.ID   `json:"id" gorm:"primaryKey"`
	GatewayTransactionID int64          `json:"gateway_transaction_id" gorm:"not null;uniqueIndex"`
	SpaceID              int64          `json:"space_id" gorm:"not null"`
	OrderID              snowflake.ID   `json:"order_id" gorm:"not null;index"`
	OrderTransactionID   snowflake.ID   `json:"order_transaction_id" gorm:"not null;index"`
	State                string         `json:"state" gorm:"type:text;not null"`
	Amount               int64          `json:"amount" gorm:"not null"`
	Currency             string         `json:"currency" gorm:"type:text;not null"`
	Payload              datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	ConfirmationSentAt   *time.Time     `json:"confirmation_sent_at"`
	CreatedAt            time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time      `json:"updated_at" gorm:"not null"`
}

func (Snapshot) TableName() string { return "gateway_transactions" }

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, snapshot *Snapshot) error
	FindByGatewayID(ctx context.Context, db *gorm.DB, gatewayTransactionID int64) (*Snapshot, error)
	StampConfirmationSent(ctx context.Context, db *gorm.DB, gatewayTransactionID int64, at time.Time) error
}
