package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/paysync/internal/transaction/domain"
	pkgdb "github.com/smallbiznis/paysync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert preserves the confirmation stamp across redeliveries; only the
// gateway-owned columns are refreshed.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, snapshot *domain.Snapshot) error {
	now := time.Now().UTC()
	result := db.WithContext(ctx).Exec(
		`UPDATE gateway_transactions
		 SET state = ?, amount = ?, currency = ?, payload = ?, updated_at = ?
		 WHERE gateway_transaction_id = ?`,
		snapshot.State,
		snapshot.Amount,
		snapshot.Currency,
		snapshot.Payload,
		now,
		snapshot.GatewayTransactionID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	err := db.WithContext(ctx).Exec(
		`INSERT INTO gateway_transactions
		   (id, gateway_transaction_id, space_id, order_id, order_transaction_id,
		    state, amount, currency, payload, confirmation_sent_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		snapshot.ID,
		snapshot.GatewayTransactionID,
		snapshot.SpaceID,
		snapshot.OrderID,
		snapshot.OrderTransactionID,
		snapshot.State,
		snapshot.Amount,
		snapshot.Currency,
		snapshot.Payload,
		now,
		now,
	).Error
	// Another replica winning the insert race leaves an equivalent row behind.
	if pkgdb.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}

func (r *repo) FindByGatewayID(ctx context.Context, db *gorm.DB, gatewayTransactionID int64) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT id, gateway_transaction_id, space_id, order_id, order_transaction_id,
		        state, amount, currency, payload, confirmation_sent_at, created_at, updated_at
		 FROM gateway_transactions WHERE gateway_transaction_id = ?`,
		gatewayTransactionID,
	).Scan(&snapshot).Error
	if err != nil {
		return nil, err
	}
	if snapshot.ID == 0 {
		return nil, nil
	}
	return &snapshot, nil
}

func (r *repo) StampConfirmationSent(ctx context.Context, db *gorm.DB, gatewayTransactionID int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE gateway_transactions
		 SET confirmation_sent_at = ?, updated_at = ?
		 WHERE gateway_transaction_id = ? AND confirmation_sent_at IS NULL`,
		at,
		time.Now().UTC(),
		gatewayTransactionID,
	).Error
}
