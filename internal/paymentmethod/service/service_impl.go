package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysync/internal/config"
	gatewaydomain "github.com/smallbiznis/paysync/internal/gateway/domain"
	"github.com/smallbiznis/paysync/internal/orderlock"
	"github.com/smallbiznis/paysync/internal/paymentmethod/domain"
	settingsdomain "github.com/smallbiznis/paysync/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Holder  *config.ReconcileHolder
	Repo    domain.Repository
	Clients gatewaydomain.ClientFactory
	Locker  *orderlock.RedisLocker `optional:"true"`
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	holder  *config.ReconcileHolder
	repo    domain.Repository
	clients gatewaydomain.ClientFactory
	locker  *orderlock.RedisLocker

	mu      sync.Mutex
	running map[int64]bool
}

func New(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("paymentmethod"),
		genID:   p.GenID,
		holder:  p.Holder,
		repo:    p.Repo,
		clients: p.Clients,
		locker:  p.Locker,
		running: make(map[int64]bool),
	}
}

// Synchronize is not order-scoped, so it dedupes on the space instead: a sync
// already in flight (here or on another replica) makes a second webhook a no-op.
func (s *service) Synchronize(ctx context.Context, settings *settingsdomain.ChannelSettings) (domain.SyncResult, error) {
	if settings == nil {
		return domain.SyncResult{}, settingsdomain.ErrSettingsNotFound
	}
	spaceID := settings.SpaceID

	if !s.begin(spaceID) {
		s.log.Info("payment method sync already running", zap.Int64("space_id", spaceID))
		return domain.SyncResult{Skipped: true}, nil
	}
	defer s.end(spaceID)

	if s.locker != nil {
		key := fmt.Sprintf("paysync:methodsync:%d", spaceID)
		token, ok, err := s.locker.TryLock(ctx, key, s.holder.Get().MethodSyncLockTTL())
		if err != nil {
			return domain.SyncResult{}, err
		}
		if !ok {
			s.log.Info("payment method sync held by another replica", zap.Int64("space_id", spaceID))
			return domain.SyncResult{Skipped: true}, nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("failed to release sync lock", zap.Int64("space_id", spaceID), zap.Error(err))
			}
		}()
	}

	configs, err := s.clients.ForCredentials(settings.Credentials()).PaymentMethodConfigurations(ctx, spaceID)
	if err != nil {
		return domain.SyncResult{}, err
	}

	var result domain.SyncResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.ListBySpace(ctx, tx, spaceID)
		if err != nil {
			return err
		}
		byConfig := make(map[int64]domain.PaymentMethod, len(existing))
		for _, method := range existing {
			byConfig[method.ConfigurationID] = method
		}

		seen := make(map[int64]bool, len(configs))
		for _, cfg := range configs {
			seen[cfg.ID] = true
			next := domain.PaymentMethod{
				ConfigurationID: cfg.ID,
				SpaceID:         spaceID,
				Name:            cfg.Name,
				Description:     cfg.Description,
				ImageURL:        cfg.ImageURL,
				Active:          cfg.State == gatewaydomain.PaymentMethodStateActive,
			}

			current, ok := byConfig[cfg.ID]
			if !ok {
				next.ID = s.genID.Generate()
				if err := s.repo.Insert(ctx, tx, &next); err != nil {
					return err
				}
				result.Created++
				continue
			}
			if current.Name != next.Name ||
				current.Description != next.Description ||
				current.ImageURL != next.ImageURL ||
				current.Active != next.Active {
				if err := s.repo.Update(ctx, tx, &next); err != nil {
					return err
				}
				result.Updated++
			}
		}

		var missing []int64
		for _, method := range existing {
			if !seen[method.ConfigurationID] {
				missing = append(missing, method.ConfigurationID)
			}
		}
		deactivated, err := s.repo.Deactivate(ctx, tx, spaceID, missing)
		if err != nil {
			return err
		}
		result.Deactivated = deactivated
		return nil
	})
	if err != nil {
		return domain.SyncResult{}, err
	}

	s.log.Info("payment methods synchronized",
		zap.Int64("space_id", spaceID),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("deactivated", result.Deactivated),
	)
	return result, nil
}

func (s *service) begin(spaceID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[spaceID] {
		return false
	}
	s.running[spaceID] = true
	return true
}

func (s *service) end(spaceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, spaceID)
}
