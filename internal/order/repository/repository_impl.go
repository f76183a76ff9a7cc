package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysync/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Deliveries", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.OrderTransaction, error) {
	var trx domain.OrderTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, state, total_amount, created_at, updated_at
		 FROM order_transactions WHERE id = ?`,
		id,
	).Scan(&trx).Error
	if err != nil {
		return nil, err
	}
	if trx.ID == 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return &trx, nil
}

func (r *repo) UpdateTransactionState(ctx context.Context, db *gorm.DB, id snowflake.ID, state domain.TransactionState) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE order_transactions SET state = ?, updated_at = ? WHERE id = ?`,
		state,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *repo) UpdateDeliveryState(ctx context.Context, db *gorm.DB, id snowflake.ID, state domain.DeliveryState) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE order_deliveries SET state = ?, updated_at = ? WHERE id = ?`,
		state,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrDeliveryNotFound
	}
	return nil
}

func (r *repo) StampWebhookLock(ctx context.Context, db *gorm.DB, orderID snowflake.ID, at time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders SET webhook_locked_at = ? WHERE id = ?`,
		at,
		orderID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
