package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Snapshot is the locally persisted copy of a gateway refund. Webhooks are
// delivered at least once, so re-applying the same snapshot must be a no-op.
type Snapshot struct {
	ID                   snowflake.ID   `json:"id" gorm:"primaryKey"`
	GatewayRefundID      int64          `json:"gateway_refund_id" gorm:"not null;uniqueIndex"`
	GatewayTransactionID int64          `json:"gateway_transaction_id" gorm:"not null;index"`
	SpaceID              int64          `json:"space_id" gorm:"not null"`
	OrderID              snowflake.ID   `json:"order_id" gorm:"not null;index"`
	State                string         `json:"state" gorm:"type:text;not null"`
	Amount               int64          `json:"amount" gorm:"not null"`
	Currency             string         `json:"currency" gorm:"type:text;not null"`
	Payload              datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	CreatedAt            time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time      `json:"updated_at" gorm:"not null"`
}

func (Snapshot) TableName() string { return "gateway_refunds" }

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, snapshot *Snapshot) error
	FindByGatewayID(ctx context.Context, db *gorm.DB, gatewayRefundID int64) (*Snapshot, error)
}
