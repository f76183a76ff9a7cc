package orderlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysync/internal/config"
	"github.com/smallbiznis/paysync/internal/metrics"
	orderdomain "github.com/smallbiznis/paysync/internal/order/domain"
	"github.com/smallbiznis/paysync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrLockBusy = errors.New("order_lock_busy")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Holder  *config.ReconcileHolder
	Orders  orderdomain.Repository
	Locker  *RedisLocker     `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// Manager serializes reconciliation work per order id. Three layers stack up:
// an in-process keyed mutex, an optional redis lock across replicas, and a
// READ COMMITTED transaction that claims the order row so the guarded
// read-modify-write sequence is atomic against the database.
type Manager struct {
	db      *gorm.DB
	log     *zap.Logger
	holder  *config.ReconcileHolder
	orders  orderdomain.Repository
	locker  *RedisLocker
	metrics *metrics.Metrics

	mu   sync.Mutex
	held map[snowflake.ID]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewManager(p Params) *Manager {
	return &Manager{
		db:      p.DB,
		log:     p.Log.Named("orderlock"),
		holder:  p.Holder,
		orders:  p.Orders,
		locker:  p.Locker,
		metrics: p.Metrics,
		held:    make(map[snowflake.ID]*entry),
	}
}

// WithOrderLock runs fn inside the per-order critical section. The lock is
// released on every path and errors from fn come back unchanged.
func (m *Manager) WithOrderLock(ctx context.Context, orderID snowflake.ID, fn func(tx *gorm.DB) error) error {
	if orderID == 0 {
		return orderdomain.ErrOrderNotFound
	}

	waitStart := time.Now()

	e := m.retain(orderID)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		m.release(orderID)
	}()

	if m.locker != nil {
		token, err := m.acquireDistributed(ctx, orderID)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.locker.Release(context.WithoutCancel(ctx), m.key(orderID), token); err != nil {
				m.log.Warn("failed to release distributed order lock",
					zap.String("order_id", orderID.String()),
					zap.Error(err),
				)
			}
		}()
	}

	m.metrics.ObserveLockWait(time.Since(waitStart))

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := m.claimRow(ctx, tx, orderID); err != nil {
			return err
		}
		if err := m.orders.StampWebhookLock(ctx, tx, orderID, time.Now().UTC()); err != nil {
			return err
		}
		return fn(tx)
	}, m.txOptions()...)
}

// claimRow takes a row-level lock on the order where the dialect supports it.
// SQLite rejects FOR UPDATE and serializes writers itself, so there the stamp
// update alone claims the row.
func (m *Manager) claimRow(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) error {
	if !db.SupportsRowLocks(m.db) {
		return nil
	}
	var claimed struct {
		ID snowflake.ID
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT id FROM orders WHERE id = ? FOR UPDATE`,
		orderID,
	).Scan(&claimed).Error
	if err != nil {
		return err
	}
	if claimed.ID == 0 {
		return orderdomain.ErrOrderNotFound
	}
	return nil
}

func (m *Manager) txOptions() []*sql.TxOptions {
	if !db.SupportsRowLocks(m.db) {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelReadCommitted}}
}

func (m *Manager) acquireDistributed(ctx context.Context, orderID snowflake.ID) (string, error) {
	cfg := m.holder.Get()
	key := m.key(orderID)

	for attempt := 0; ; attempt++ {
		token, ok, err := m.locker.TryLock(ctx, key, cfg.OrderLockTTL())
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if attempt >= cfg.OrderLockRetries {
			return "", fmt.Errorf("%w: order %s", ErrLockBusy, orderID)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(cfg.OrderLockRetryDelay()):
		}
	}
}

func (m *Manager) key(orderID snowflake.ID) string {
	return "paysync:orderlock:" + orderID.String()
}

func (m *Manager) retain(orderID snowflake.ID) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.held[orderID]
	if !ok {
		e = &entry{}
		m.held[orderID] = e
	}
	e.refs++
	return e
}

func (m *Manager) release(orderID snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.held[orderID]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.held, orderID)
	}
}
