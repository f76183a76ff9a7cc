package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysync/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log  *zap.Logger
	Repo domain.Repository
}

// StateHandler applies named transitions to order transactions and deliveries.
// All calls run against the caller's transaction handle so they participate in
// the lock-guarded unit of work.
type StateHandler struct {
	log  *zap.Logger
	repo domain.Repository
}

func NewStateHandler(p Params) *StateHandler {
	return &StateHandler{
		log:  p.Log.Named("order.state"),
		repo: p.Repo,
	}
}

func (h *StateHandler) Cancel(ctx context.Context, db *gorm.DB, trxID snowflake.ID) error {
	return h.apply(ctx, db, trxID, domain.TransitionCancel)
}

func (h *StateHandler) Process(ctx context.Context, db *gorm.DB, trxID snowflake.ID) error {
	return h.apply(ctx, db, trxID, domain.TransitionProcess)
}

func (h *StateHandler) Paid(ctx context.Context, db *gorm.DB, trxID snowflake.ID) error {
	return h.apply(ctx, db, trxID, domain.TransitionPaid)
}

func (h *StateHandler) Refund(ctx context.Context, db *gorm.DB, trxID snowflake.ID) error {
	return h.apply(ctx, db, trxID, domain.TransitionRefund)
}

func (h *StateHandler) RefundPartially(ctx context.Context, db *gorm.DB, trxID snowflake.ID) error {
	return h.apply(ctx, db, trxID, domain.TransitionRefundPartially)
}

func (h *StateHandler) apply(ctx context.Context, db *gorm.DB, trxID snowflake.ID, t domain.Transition) error {
	trx, err := h.repo.FindTransaction(ctx, db, trxID)
	if err != nil {
		return err
	}

	next, changed, err := domain.Apply(trx.State, t)
	if err != nil {
		return err
	}
	if !changed {
		h.log.Debug("transition is a no-op",
			zap.String("order_transaction_id", trxID.String()),
			zap.String("transition", string(t)),
			zap.String("state", string(trx.State)),
		)
		return nil
	}

	return h.repo.UpdateTransactionState(ctx, db, trxID, next)
}

// UnholdDelivery releases a delivery held pending payment confirmation.
// Deliveries not currently held are left alone.
func (h *StateHandler) UnholdDelivery(ctx context.Context, db *gorm.DB, delivery *domain.OrderDelivery) error {
	if delivery == nil {
		return domain.ErrDeliveryNotFound
	}
	if delivery.State != domain.DeliveryStateHeld {
		return nil
	}
	return h.repo.UpdateDeliveryState(ctx, db, delivery.ID, domain.DeliveryStateOpen)
}
