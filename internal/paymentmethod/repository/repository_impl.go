package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/paysync/internal/paymentmethod/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListBySpace(ctx context.Context, db *gorm.DB, spaceID int64) ([]domain.PaymentMethod, error) {
	var methods []domain.PaymentMethod
	err := db.WithContext(ctx).Raw(
		`SELECT id, configuration_id, space_id, name, description, image_url,
		        active, created_at, updated_at
		 FROM payment_methods WHERE space_id = ? ORDER BY configuration_id`,
		spaceID,
	).Scan(&methods).Error
	if err != nil {
		return nil, err
	}
	return methods, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, method *domain.PaymentMethod) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_methods
		   (id, configuration_id, space_id, name, description, image_url, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		method.ID,
		method.ConfigurationID,
		method.SpaceID,
		method.Name,
		method.Description,
		method.ImageURL,
		method.Active,
		now,
		now,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, method *domain.PaymentMethod) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_methods
		 SET name = ?, description = ?, image_url = ?, active = ?, updated_at = ?
		 WHERE space_id = ? AND configuration_id = ?`,
		method.Name,
		method.Description,
		method.ImageURL,
		method.Active,
		time.Now().UTC(),
		method.SpaceID,
		method.ConfigurationID,
	).Error
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, spaceID int64, configurationIDs []int64) (int, error) {
	if len(configurationIDs) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE payment_methods SET active = ?, updated_at = ?
		 WHERE space_id = ? AND configuration_id IN ? AND active = ?`,
		false,
		time.Now().UTC(),
		spaceID,
		configurationIDs,
		true,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}
