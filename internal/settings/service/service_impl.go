package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/paysync/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &service{
		db:   p.DB,
		log:  p.Log.Named("settings"),
		repo: p.Repo,
	}
}

func (s *service) Resolve(ctx context.Context, channelID string) (*domain.ChannelSettings, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "null" {
		channelID = ""
	}

	if channelID != "" {
		settings, err := s.repo.FindByChannel(ctx, s.db, channelID)
		if err == nil {
			return settings, nil
		}
		if !errors.Is(err, domain.ErrSettingsNotFound) {
			return nil, err
		}
		s.log.Debug("no channel-scoped settings, falling back to global",
			zap.String("channel_id", channelID),
		)
	}

	return s.repo.FindByChannel(ctx, s.db, "")
}
