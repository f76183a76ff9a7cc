package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/paysync/internal/config"
	gatewaydomain "github.com/smallbiznis/paysync/internal/gateway/domain"
	"github.com/smallbiznis/paysync/internal/paymentmethod/domain"
	"github.com/smallbiznis/paysync/internal/paymentmethod/repository"
	settingsdomain "github.com/smallbiznis/paysync/internal/settings/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubConfigClient struct {
	configs []gatewaydomain.PaymentMethodConfiguration
	err     error
}

func (s *stubConfigClient) ForCredentials(creds gatewaydomain.Credentials) gatewaydomain.Client {
	return s
}

func (s *stubConfigClient) Transaction(ctx context.Context, spaceID, entityID int64) (*gatewaydomain.Transaction, error) {
	return nil, gatewaydomain.ErrEntityNotFound
}

func (s *stubConfigClient) Refund(ctx context.Context, spaceID, entityID int64) (*gatewaydomain.Refund, error) {
	return nil, gatewaydomain.ErrEntityNotFound
}

func (s *stubConfigClient) TransactionInvoice(ctx context.Context, spaceID, entityID int64) (*gatewaydomain.TransactionInvoice, error) {
	return nil, gatewaydomain.ErrEntityNotFound
}

func (s *stubConfigClient) PaymentMethodConfigurations(ctx context.Context, spaceID int64) ([]gatewaydomain.PaymentMethodConfiguration, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.configs, nil
}

func setupSync(t *testing.T, client *stubConfigClient) (domain.Service, *gorm.DB) {
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

	err = db.Exec(`CREATE TABLE payment_methods (
		id INTEGER PRIMARY KEY,
		configuration_id INTEGER NOT NULL,
		space_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Holder:  config.NewReconcileHolderFrom(config.DefaultReconcileConfig()),
		Repo:    repository.Provide(),
		Clients: client,
	})
	return svc, db
}

func testSettings() *settingsdomain.ChannelSettings {
	return &settingsdomain.ChannelSettings{
		ID:                 1,
		SpaceID:            405,
		AppUserID:          9001,
		AppUserKey:         "key",
		EmailEnabled:       true,
		IntegrationEnabled: true,
	}
}

func TestSynchronizeCreatesMethods(t *testing.T) {
	client := &stubConfigClient{configs: []gatewaydomain.PaymentMethodConfiguration{
		{ID: 11, Name: "Card", State: gatewaydomain.PaymentMethodStateActive},
		{ID: 12, Name: "Invoice", State: "INACTIVE", Description: "pay later"},
	}}
	svc, db := setupSync(t, client)

	result, err := svc.Synchronize(context.Background(), testSettings())
	if err != nil {
		t.Fatalf("synchronize: %v", err)
	}
	if result.Created != 2 || result.Updated != 0 || result.Deactivated != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var active int
	if err := db.Raw(`SELECT COUNT(*) FROM payment_methods WHERE active = 1`).Scan(&active).Error; err != nil {
		t.Fatalf("count active: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected one active method, got %d", active)
	}
}

func TestSynchronizeUpdatesChangedMethods(t *testing.T) {
	client := &stubConfigClient{configs: []gatewaydomain.PaymentMethodConfiguration{
		{ID: 11, Name: "Card", State: gatewaydomain.PaymentMethodStateActive},
	}}
	svc, _ := setupSync(t, client)

	if _, err := svc.Synchronize(context.Background(), testSettings()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	client.configs[0].Name = "Credit Card"
	result, err := svc.Synchronize(context.Background(), testSettings())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Created != 0 || result.Updated != 1 {
		t.Fatalf("expected one update, got %+v", result)
	}
}

func TestSynchronizeIsIdempotentOnUnchangedMethods(t *testing.T) {
	client := &stubConfigClient{configs: []gatewaydomain.PaymentMethodConfiguration{
		{ID: 11, Name: "Card", State: gatewaydomain.PaymentMethodStateActive},
	}}
	svc, _ := setupSync(t, client)

	if _, err := svc.Synchronize(context.Background(), testSettings()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	result, err := svc.Synchronize(context.Background(), testSettings())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Created != 0 || result.Updated != 0 || result.Deactivated != 0 {
		t.Fatalf("expected no-op second sync, got %+v", result)
	}
}

func TestSynchronizeDeactivatesMissingMethods(t *testing.T) {
	client := &stubConfigClient{configs: []gatewaydomain.PaymentMethodConfiguration{
		{ID: 11, Name: "Card", State: gatewaydomain.PaymentMethodStateActive},
		{ID: 12, Name: "Wallet", State: gatewaydomain.PaymentMethodStateActive},
	}}
	svc, db := setupSync(t, client)

	if _, err := svc.Synchronize(context.Background(), testSettings()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	client.configs = client.configs[:1]
	result, err := svc.Synchronize(context.Background(), testSettings())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Deactivated != 1 {
		t.Fatalf("expected one deactivation, got %+v", result)
	}

	var active int
	if err := db.Raw(`SELECT COUNT(*) FROM payment_methods WHERE active = 1`).Scan(&active).Error; err != nil {
		t.Fatalf("count active: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected one active method after deactivation, got %d", active)
	}
}

func TestSynchronizeGatewayFailureLeavesTableUntouched(t *testing.T) {
	client := &stubConfigClient{err: gatewaydomain.ErrRequestFailed}
	svc, db := setupSync(t, client)

	_, err := svc.Synchronize(context.Background(), testSettings())
	if !errors.Is(err, gatewaydomain.ErrRequestFailed) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	var n int
	if err := db.Raw(`SELECT COUNT(*) FROM payment_methods`).Scan(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestSynchronizeRejectsNilSettings(t *testing.T) {
	svc, _ := setupSync(t, &stubConfigClient{})

	_, err := svc.Synchronize(context.Background(), nil)
	if !errors.Is(err, settingsdomain.ErrSettingsNotFound) {
		t.Fatalf("expected settings error, got %v", err)
	}
}
