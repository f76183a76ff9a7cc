package orderlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/paysync/internal/config"
	orderdomain "github.com/smallbiznis/paysync/internal/order/domain"
	orderrepository "github.com/smallbiznis/paysync/internal/order/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupManager(t *testing.T) (*Manager, *gorm.DB, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	schema := []string{
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			channel_id TEXT NOT NULL DEFAULT '',
			number TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			customer_email TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL,
			total_amount INTEGER NOT NULL,
			webhook_locked_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE counters (id INTEGER PRIMARY KEY, value INTEGER NOT NULL)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	manager := NewManager(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Holder: config.NewReconcileHolderFrom(config.DefaultReconcileConfig()),
		Orders: orderrepository.Provide(),
	})
	return manager, db, node
}

func seedLockOrder(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()
	orderID := node.Generate()
	err := db.Create(&orderdomain.Order{
		ID:          orderID,
		Number:      "ORD-LOCK",
		Currency:    "EUR",
		TotalAmount: 10000,
	}).Error
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return orderID
}

func TestWithOrderLockRejectsZeroID(t *testing.T) {
	manager, _, _ := setupManager(t)

	err := manager.WithOrderLock(context.Background(), 0, func(tx *gorm.DB) error {
		t.Fatal("callback must not run for zero order id")
		return nil
	})
	if !errors.Is(err, orderdomain.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
}

func TestWithOrderLockStampsOrder(t *testing.T) {
	manager, db, node := setupManager(t)
	orderID := seedLockOrder(t, db, node)

	ran := false
	err := manager.WithOrderLock(context.Background(), orderID, func(tx *gorm.DB) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("with order lock: %v", err)
	}
	if !ran {
		t.Fatal("expected callback to run")
	}

	var stamped int
	err = db.Raw(`SELECT COUNT(*) FROM orders WHERE id = ? AND webhook_locked_at IS NOT NULL`, orderID).Scan(&stamped).Error
	if err != nil {
		t.Fatalf("read stamp: %v", err)
	}
	if stamped != 1 {
		t.Fatal("expected webhook lock stamp written")
	}
}

func TestWithOrderLockPropagatesCallbackError(t *testing.T) {
	manager, db, node := setupManager(t)
	orderID := seedLockOrder(t, db, node)

	sentinel := errors.New("handler failed")
	err := manager.WithOrderLock(context.Background(), orderID, func(tx *gorm.DB) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error back, got %v", err)
	}
}

func TestWithOrderLockRollsBackOnError(t *testing.T) {
	manager, db, node := setupManager(t)
	orderID := seedLockOrder(t, db, node)

	if err := db.Exec(`INSERT INTO counters (id, value) VALUES (1, 0)`).Error; err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	sentinel := errors.New("boom")
	err := manager.WithOrderLock(context.Background(), orderID, func(tx *gorm.DB) error {
		if err := tx.Exec(`UPDATE counters SET value = 99 WHERE id = 1`).Error; err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}

	var value int
	if err := db.Raw(`SELECT value FROM counters WHERE id = 1`).Scan(&value).Error; err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if value != 0 {
		t.Fatalf("expected write rolled back, got %d", value)
	}
}

func TestWithOrderLockSerializesSameOrder(t *testing.T) {
	manager, db, node := setupManager(t)
	orderID := seedLockOrder(t, db, node)

	if err := db.Exec(`INSERT INTO counters (id, value) VALUES (1, 0)`).Error; err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = manager.WithOrderLock(context.Background(), orderID, func(tx *gorm.DB) error {
				// Read-modify-write: lost updates show up as a low final count.
				var value int
				if err := tx.Raw(`SELECT value FROM counters WHERE id = 1`).Scan(&value).Error; err != nil {
					return err
				}
				return tx.Exec(`UPDATE counters SET value = ? WHERE id = 1`, value+1).Error
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}

	var value int
	if err := db.Raw(`SELECT value FROM counters WHERE id = 1`).Scan(&value).Error; err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if value != workers {
		t.Fatalf("expected %d increments, got %d", workers, value)
	}
}

func TestWithOrderLockUnknownOrder(t *testing.T) {
	manager, _, node := setupManager(t)

	err := manager.WithOrderLock(context.Background(), node.Generate(), func(tx *gorm.DB) error {
		t.Fatal("callback must not run for missing order")
		return nil
	})
	if !errors.Is(err, orderdomain.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
}
