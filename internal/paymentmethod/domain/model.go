package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	settingsdomain "github.com/smallbiznis/paysync/internal/settings/domain"
	"gorm.io/gorm"
)

// PaymentMethod mirrors one gateway payment method configuration for a space.
type PaymentMethod struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	ConfigurationID int64        `json:"configuration_id" gorm:"not null;uniqueIndex:ux_payment_methods_space_config"`
	SpaceID         int64        `json:"space_id" gorm:"not null;uniqueIndex:ux_payment_methods_space_config"`
	Name            string       `json:"name" gorm:"type:text;not null"`
	Description     string       `json:"description" gorm:"type:text"`
	ImageURL        string       `json:"image_url" gorm:"type:text"`
	Active          bool         `json:"active" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }

// SyncResult summarizes one synchronize run.
type SyncResult struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	Skipped     bool `json:"skipped"`
}

type Repository interface {
	ListBySpace(ctx context.Context, db *gorm.DB, spaceID int64) ([]PaymentMethod, error)
	Insert(ctx context.Context, db *gorm.DB, method *PaymentMethod) error
	Update(ctx context.Context, db *gorm.DB, method *PaymentMethod) error
	Deactivate(ctx context.Context, db *gorm.DB, spaceID int64, configurationIDs []int64) (int, error)
}

type Service interface {
	// Synchronize pulls the space's payment method configurations from the
	// gateway and reconciles the local rows.
	Synchronize(ctx context.Context, settings *settingsdomain.ChannelSettings) (SyncResult, error)
}
