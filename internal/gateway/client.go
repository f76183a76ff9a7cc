package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/paysync/internal/config"
	"github.com/smallbiznis/paysync/internal/gateway/domain"
	"github.com/smallbiznis/paysync/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(NewFactory),
)

type FactoryParams struct {
	fx.In

	Cfg     config.Config
	Holder  *config.ReconcileHolder
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type factory struct {
	baseURL string
	holder  *config.ReconcileHolder
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewFactory(p FactoryParams) domain.ClientFactory {
	return &factory{
		baseURL: p.Cfg.GatewayBaseURL,
		holder:  p.Holder,
		log:     p.Log.Named("gateway.client"),
		metrics: p.Metrics,
	}
}

func (f *factory) ForCredentials(creds domain.Credentials) domain.Client {
	return &client{
		baseURL: f.baseURL,
		creds:   creds,
		http:    &http.Client{Timeout: f.holder.Get().GatewayTimeout()},
		log:     f.log,
		metrics: f.metrics,
	}
}

type client struct {
	baseURL string
	creds   domain.Credentials
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

type gatewayError struct {
	Message string `json:"message"`
}

func (c *client) Transaction(ctx context.Context, spaceID, entityID int64) (*domain.Transaction, error) {
	var out domain.Transaction
	path := fmt.Sprintf("/api/space/%d/transactions/%d", spaceID, entityID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Refund(ctx context.Context, spaceID, entityID int64) (*domain.Refund, error) {
	var out domain.Refund
	path := fmt.Sprintf("/api/space/%d/refunds/%d", spaceID, entityID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) TransactionInvoice(ctx context.Context, spaceID, entityID int64) (*domain.TransactionInvoice, error) {
	var out domain.TransactionInvoice
	path := fmt.Sprintf("/api/space/%d/transaction-invoices/%d", spaceID, entityID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) PaymentMethodConfigurations(ctx context.Context, spaceID int64) ([]domain.PaymentMethodConfiguration, error) {
	var out []domain.PaymentMethodConfiguration
	path := fmt.Sprintf("/api/space/%d/payment-method-configurations", spaceID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) get(ctx context.Context, path string, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.ObserveGatewayRequest(resourceFromPath(path), time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Application-User-Id", strconv.FormatInt(c.creds.UserID, 10))
	req.Header.Set("X-Application-User-Key", c.creds.UserSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrEntityNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var gwErr gatewayError
		if err := json.NewDecoder(resp.Body).Decode(&gwErr); err == nil && gwErr.Message != "" {
			c.log.Warn("gateway request rejected",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.String("message", gwErr.Message),
			)
		}
		return fmt.Errorf("%w: status %d", domain.ErrRequestFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", domain.ErrRequestFailed, err)
	}
	return nil
}

// resourceFromPath reduces /api/space/{id}/transactions/{id} to "transactions"
// so metric cardinality stays bounded.
func resourceFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 4 {
		return parts[3]
	}
	return "unknown"
}
