package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/paysync/internal/gateway/domain"
	"gorm.io/gorm"
)

var ErrSettingsNotFound = errors.New("channel_settings_not_found")

// ChannelSettings holds the gateway credentials and flags for one sales
// channel. A row with an empty channel id is the global fallback.
type ChannelSettings struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	ChannelID          string       `json:"channel_id" gorm:"type:text;not null;uniqueIndex"`
	SpaceID            int64        `json:"space_id" gorm:"not null"`
	AppUserID          int64        `json:"app_user_id" gorm:"not null"`
	AppUserKey         string       `json:"-" gorm:"type:text;not null"`
	EmailEnabled       bool         `json:"email_enabled" gorm:"not null"`
	IntegrationEnabled bool         `json:"integration_enabled" gorm:"not null"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"not null"`
}

func (ChannelSettings) TableName() string { return "channel_settings" }

// Credentials returns the gateway credentials configured for the channel.
func (s *ChannelSettings) Credentials() gatewaydomain.Credentials {
	return gatewaydomain.Credentials{
		SpaceID:    s.SpaceID,
		UserID:     s.AppUserID,
		UserSecret: s.AppUserKey,
	}
}

type Repository interface {
	FindByChannel(ctx context.Context, db *gorm.DB, channelID string) (*ChannelSettings, error)
	Upsert(ctx context.Context, db *gorm.DB, settings *ChannelSettings) error
}

type Service interface {
	// Resolve returns the settings for a channel, falling back to the global
	// row. channelID "null" or "" means no channel scoping.
	Resolve(ctx context.Context, channelID string) (*ChannelSettings, error)
}
