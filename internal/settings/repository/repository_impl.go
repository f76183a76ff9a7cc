package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/paysync/internal/settings/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByChannel(ctx context.Context, db *gorm.DB, channelID string) (*domain.ChannelSettings, error) {
	var settings domain.ChannelSettings
	err := db.WithContext(ctx).Raw(
		`SELECT id, channel_id, space_id, app_user_id, app_user_key,
		        email_enabled, integration_enabled, created_at, updated_at
		 FROM channel_settings WHERE channel_id = ?`,
		channelID,
	).Scan(&settings).Error
	if err != nil {
		return nil, err
	}
	if settings.ID == 0 {
		return nil, domain.ErrSettingsNotFound
	}
	return &settings, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, settings *domain.ChannelSettings) error {
	now := time.Now().UTC()
	result := db.WithContext(ctx).Exec(
		`UPDATE channel_settings
		 SET space_id = ?, app_user_id = ?, app_user_key = ?,
		     email_enabled = ?, integration_enabled = ?, updated_at = ?
		 WHERE channel_id = ?`,
		settings.SpaceID,
		settings.AppUserID,
		settings.AppUserKey,
		settings.EmailEnabled,
		settings.IntegrationEnabled,
		now,
		settings.ChannelID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO channel_settings
		   (id, channel_id, space_id, app_user_id, app_user_key,
		    email_enabled, integration_enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settings.ID,
		settings.ChannelID,
		settings.SpaceID,
		settings.AppUserID,
		settings.AppUserKey,
		settings.EmailEnabled,
		settings.IntegrationEnabled,
		now,
		now,
	).Error
}
