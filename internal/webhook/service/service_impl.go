package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/paysync/internal/gateway/domain"
	"github.com/smallbiznis/paysync/internal/metrics"
	orderdomain "github.com/smallbiznis/paysync/internal/order/domain"
	orderservice "github.com/smallbiznis/paysync/internal/order/service"
	"github.com/smallbiznis/paysync/internal/orderlock"
	"github.com/smallbiznis/paysync/internal/ordermail"
	paymentmethoddomain "github.com/smallbiznis/paysync/internal/paymentmethod/domain"
	refunddomain "github.com/smallbiznis/paysync/internal/refund/domain"
	settingsdomain "github.com/smallbiznis/paysync/internal/settings/domain"
	trxdomain "github.com/smallbiznis/paysync/internal/transaction/domain"
	"github.com/smallbiznis/paysync/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Gateway states that cancel a pending payment.
var transactionFailedStates = map[string]bool{
	gatewaydomain.TransactionDecline: true,
	gatewaydomain.TransactionFailed:  true,
	gatewaydomain.TransactionVoided:  true,
}

// Gateway states that confirm a payment and trigger the confirmation mail.
var transactionSuccessStates = map[string]bool{
	gatewaydomain.TransactionAuthorized: true,
	gatewaydomain.TransactionCompleted:  true,
	gatewaydomain.TransactionFulfill:    true,
}

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	SettingsSvc settingsdomain.Service
	Clients     gatewaydomain.ClientFactory
	Orders      orderdomain.Repository
	States      *orderservice.StateHandler
	Locks       *orderlock.Manager
	Refunds     refunddomain.Repository
	Trx         trxdomain.Repository
	Mail        *ordermail.Service
	Methods     paymentmethoddomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	settingsSvc settingsdomain.Service
	clients     gatewaydomain.ClientFactory
	orders      orderdomain.Repository
	states      *orderservice.StateHandler
	locks       *orderlock.Manager
	refunds     refunddomain.Repository
	trx         trxdomain.Repository
	mail        *ordermail.Service
	methods     paymentmethoddomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("webhook"),
		genID:       p.GenID,
		settingsSvc: p.SettingsSvc,
		clients:     p.Clients,
		orders:      p.Orders,
		states:      p.States,
		locks:       p.Locks,
		refunds:     p.Refunds,
		trx:         p.Trx,
		mail:        p.Mail,
		methods:     p.Methods,
		metrics:     p.Metrics,
	}
}

func (s *Service) HandleCallback(ctx context.Context, channelID string, event *domain.Event) error {
	settings, err := s.settingsSvc.Resolve(ctx, channelID)
	if err != nil {
		s.metrics.RecordDelivery(event.ListenerEntityTechnicalName, "error")
		return err
	}
	client := s.clients.ForCredentials(settings.Credentials())

	switch event.ListenerEntityTechnicalName {
	case domain.EntityPaymentMethodConfiguration:
		_, err = s.methods.Synchronize(ctx, settings)
	case domain.EntityRefund:
		err = s.updateRefund(ctx, client, event)
	case domain.EntityTransaction:
		err = s.updateTransaction(ctx, client, settings, event)
	case domain.EntityTransactionInvoice:
		err = s.updateTransactionInvoice(ctx, client, event)
	default:
		// A recognized "unsupported event" outcome, not a failure: the gateway
		// must not keep retrying listener types we never act on.
		s.log.Error("webhook listener not implemented",
			zap.String("entity", event.ListenerEntityTechnicalName),
			zap.Int64("space_id", event.SpaceID),
			zap.Int64("entity_id", event.EntityID),
		)
		s.metrics.RecordDelivery(event.ListenerEntityTechnicalName, "ignored")
		return nil
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordDelivery(event.ListenerEntityTechnicalName, outcome)
	return err
}

func (s *Service) updateRefund(ctx context.Context, client gatewaydomain.Client, event *domain.Event) error {
	refund, err := client.Refund(ctx, event.SpaceID, event.EntityID)
	if err != nil {
		return err
	}
	if refund.Transaction == nil {
		return gatewaydomain.ErrMissingMetadata
	}
	orderID, err := refund.Transaction.OrderID()
	if err != nil {
		return err
	}
	orderTrxID, err := refund.Transaction.OrderTransactionID()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(refund)
	if err != nil {
		return err
	}

	return s.locks.WithOrderLock(ctx, orderID, func(tx *gorm.DB) error {
		if err := s.refunds.Upsert(ctx, tx, &refunddomain.Snapshot{
			ID:                   s.genID.Generate(),
			GatewayRefundID:      refund.ID,
			GatewayTransactionID: refund.Transaction.ID,
			SpaceID:              event.SpaceID,
			OrderID:              orderID,
			State:                refund.State,
			Amount:               refund.Amount,
			Currency:             refund.Currency,
			Payload:              datatypes.JSON(payload),
		}); err != nil {
			return err
		}

		orders := s.orderContext(tx, orderID)
		orderTrx, err := orders.LastTransaction(ctx)
		if err != nil {
			return err
		}

		if !orderdomain.IsRefundable(orderTrx.State) || refund.State != gatewaydomain.RefundSuccessful {
			return nil
		}

		switch {
		case refund.Amount == orderTrx.TotalAmount:
			if err := s.states.Refund(ctx, tx, orderTrxID); err != nil {
				return err
			}
			s.metrics.RecordTransition(string(orderdomain.TransitionRefund))
		case refund.Amount < orderTrx.TotalAmount:
			if err := s.states.RefundPartially(ctx, tx, orderTrxID); err != nil {
				return err
			}
			s.metrics.RecordTransition(string(orderdomain.TransitionRefundPartially))
		default:
			// Not a defined transition; surfaced for operators, applied nowhere.
			s.log.Warn("refund amount exceeds transaction total",
				zap.String("order_id", orderID.String()),
				zap.Int64("refund_amount", refund.Amount),
				zap.Int64("transaction_total", orderTrx.TotalAmount),
			)
		}
		return nil
	})
}

func (s *Service) updateTransaction(
	ctx context.Context,
	client gatewaydomain.Client,
	settings *settingsdomain.ChannelSettings,
	event *domain.Event,
) error {
	transaction, err := client.Transaction(ctx, event.SpaceID, event.EntityID)
	if err != nil {
		return err
	}
	orderID, err := transaction.OrderID()
	if err != nil {
		return err
	}
	orderTrxID, err := transaction.OrderTransactionID()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(transaction)
	if err != nil {
		return err
	}

	return s.locks.WithOrderLock(ctx, orderID, func(tx *gorm.DB) error {
		if err := s.trx.Upsert(ctx, tx, &trxdomain.Snapshot{
			ID:                   s.genID.Generate(),
			GatewayTransactionID: transaction.ID,
			SpaceID:              event.SpaceID,
			OrderID:              orderID,
			OrderTransactionID:   orderTrxID,
			State:                transaction.State,
			Amount:               transaction.Amount,
			Currency:             transaction.Currency,
			Payload:              datatypes.JSON(payload),
		}); err != nil {
			return err
		}

		orders := s.orderContext(tx, orderID)
		orderTrx, err := orders.LastTransaction(ctx)
		if err != nil {
			return err
		}

		if !orderdomain.IsFinal(orderTrx.State) && transactionFailedStates[transaction.State] {
			if err := s.states.Cancel(ctx, tx, orderTrxID); err != nil {
				return err
			}
			s.metrics.RecordTransition(string(orderdomain.TransitionCancel))
		}

		if settings.EmailEnabled && transactionSuccessStates[transaction.State] {
			s.sendConfirmationOnce(ctx, tx, orders, transaction.ID)
		}
		return nil
	})
}

// sendConfirmationOnce mails the order confirmation at most once per gateway
// transaction. Mail trouble is logged and swallowed: the state transition that
// already happened must stand, and the unsent stamp means a redelivery retries.
func (s *Service) sendConfirmationOnce(ctx context.Context, tx *gorm.DB, orders *orderContext, gatewayTrxID int64) {
	snapshot, err := s.trx.FindByGatewayID(ctx, tx, gatewayTrxID)
	if err != nil {
		s.log.Warn("could not load transaction snapshot for confirmation mail", zap.Error(err))
		return
	}
	if snapshot == nil || snapshot.ConfirmationSentAt != nil {
		return
	}

	order, err := orders.Order(ctx)
	if err != nil {
		s.log.Warn("could not load order for confirmation mail", zap.Error(err))
		return
	}
	if err := s.mail.SendOrderConfirmation(ctx, order); err != nil {
		s.log.Warn("order confirmation mail failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	if err := s.trx.StampConfirmationSent(ctx, tx, gatewayTrxID, time.Now().UTC()); err != nil {
		s.log.Warn("could not stamp confirmation mail", zap.Error(err))
	}
}

func (s *Service) updateTransactionInvoice(ctx context.Context, client gatewaydomain.Client, event *domain.Event) error {
	invoice, err := client.TransactionInvoice(ctx, event.SpaceID, event.EntityID)
	if err != nil {
		return err
	}
	transaction := invoice.ParentTransaction()
	if transaction == nil {
		return gatewaydomain.ErrMissingMetadata
	}
	orderID, err := transaction.OrderID()
	if err != nil {
		return err
	}
	orderTrxID, err := transaction.OrderTransactionID()
	if err != nil {
		return err
	}

	return s.locks.WithOrderLock(ctx, orderID, func(tx *gorm.DB) error {
		orders := s.orderContext(tx, orderID)
		orderTrx, err := orders.LastTransaction(ctx)
		if err != nil {
			return err
		}
		if orderdomain.IsFinal(orderTrx.State) {
			return nil
		}

		switch invoice.State {
		case gatewaydomain.InvoiceDerecognized:
			if err := s.states.Cancel(ctx, tx, orderTrxID); err != nil {
				return err
			}
			s.metrics.RecordTransition(string(orderdomain.TransitionCancel))
		case gatewaydomain.InvoiceNotApplicable, gatewaydomain.InvoicePaid:
			if err := s.states.Process(ctx, tx, orderTrxID); err != nil {
				return err
			}
			if err := s.states.Paid(ctx, tx, orderTrxID); err != nil {
				return err
			}
			s.metrics.RecordTransition(string(orderdomain.TransitionPaid))
			s.unholdDelivery(ctx, tx, orders)
		}
		return nil
	})
}

// unholdDelivery releases the order's latest held delivery. Best effort: a
// failure here never rolls back the paid transition already applied.
func (s *Service) unholdDelivery(ctx context.Context, tx *gorm.DB, orders *orderContext) {
	order, err := orders.Order(ctx)
	if err != nil {
		s.log.Error("could not load order to unhold delivery", zap.Error(err))
		return
	}
	delivery := order.LastDelivery()
	if delivery == nil {
		return
	}
	if err := s.states.UnholdDelivery(ctx, tx, delivery); err != nil {
		s.log.Error("failed to unhold delivery",
			zap.String("order_id", order.ID.String()),
			zap.String("delivery_id", delivery.ID.String()),
			zap.Error(err),
		)
	}
}

// orderContext memoizes the order entity within one locked operation so
// handlers read it once per delivery, never across deliveries.
type orderContext struct {
	repo    orderdomain.Repository
	tx      *gorm.DB
	orderID snowflake.ID
	order   *orderdomain.Order
}

func (s *Service) orderContext(tx *gorm.DB, orderID snowflake.ID) *orderContext {
	return &orderContext{repo: s.orders, tx: tx, orderID: orderID}
}

func (oc *orderContext) Order(ctx context.Context) (*orderdomain.Order, error) {
	if oc.order != nil {
		return oc.order, nil
	}
	order, err := oc.repo.FindOrder(ctx, oc.tx, oc.orderID)
	if err != nil {
		return nil, err
	}
	oc.order = order
	return order, nil
}

func (oc *orderContext) LastTransaction(ctx context.Context) (*orderdomain.OrderTransaction, error) {
	order, err := oc.Order(ctx)
	if err != nil {
		return nil, err
	}
	trx := order.LastTransaction()
	if trx == nil {
		return nil, orderdomain.ErrTransactionNotFound
	}
	return trx, nil
}
