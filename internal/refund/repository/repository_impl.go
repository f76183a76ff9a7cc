package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/paysync/internal/refund/domain"
	pkgdb "github.com/smallbiznis/paysync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert writes the snapshot keyed by the gateway refund id. Callers hold the
// order lock, so find-then-write does not race with itself.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, snapshot *domain.Snapshot) error {
	now := time.Now().UTC()
	result := db.WithContext(ctx).Exec(
		`UPDATE gateway_refunds
		 SET state = ?, amount = ?, currency = ?, payload = ?, updated_at = ?
		 WHERE gateway_refund_id = ?`,
		snapshot.State,
		snapshot.Amount,
		snapshot.Currency,
		snapshot.Payload,
		now,
		snapshot.GatewayRefundID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	err := db.WithContext(ctx).Exec(
		`INSERT INTO gateway_refunds
		   (id, gateway_refund_id, gateway_transaction_id, space_id, order_id,
		    state, amount, currency, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ID,
		snapshot.GatewayRefundID,
		snapshot.GatewayTransactionID,
		snapshot.SpaceID,
		snapshot.OrderID,
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

func (r *repo) FindByGatewayID(ctx context.Context, db *gorm.DB, gatewayRefundID int64) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT id, gateway_refund_id, gateway_transaction_id, space_id, order_id,
		        state, amount, currency, payload, created_at, updated_at
		 FROM gateway_refunds WHERE gateway_refund_id = ?`,
		gatewayRefundID,
	).Scan(&snapshot).Error
	if err != nil {
		return nil, err
	}
	if snapshot.ID == 0 {
		return nil, nil
	}
	return &snapshot, nil
}
