package ordermail

import (
	"context"
	"testing"

	orderdomain "github.com/smallbiznis/paysync/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingProvider struct {
	to      []string
	subject string
	body    string
	calls   int
}

func (p *capturingProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.calls++
	p.to = to
	p.subject = subject
	p.body = htmlBody
	return nil
}

func newTestService(provider *capturingProvider) *Service {
	return NewService(Params{
		Log:      zap.NewNop(),
		Provider: provider,
	})
}

func TestSendOrderConfirmation(t *testing.T) {
	provider := &capturingProvider{}
	svc := newTestService(provider)

	err := svc.SendOrderConfirmation(context.Background(), &orderdomain.Order{
		Number:        "ORD-1001",
		CustomerName:  "Ada Lindgren",
		CustomerEmail: "ada@example.test",
		Currency:      "EUR",
		TotalAmount:   12550,
	})
	require.NoError(t, err)

	require.Equal(t, 1, provider.calls)
	assert.Equal(t, []string{"ada@example.test"}, provider.to)
	assert.Contains(t, provider.subject, "ORD-1001")
	assert.Contains(t, provider.body, "125.50 EUR")
	assert.Contains(t, provider.body, "Ada Lindgren")
}

func TestSendOrderConfirmationSkipsMissingEmail(t *testing.T) {
	provider := &capturingProvider{}
	svc := newTestService(provider)

	err := svc.SendOrderConfirmation(context.Background(), &orderdomain.Order{
		Number:   "ORD-1002",
		Currency: "EUR",
	})
	require.NoError(t, err)
	assert.Zero(t, provider.calls)
}

func TestSendOrderConfirmationNilOrder(t *testing.T) {
	svc := newTestService(&capturingProvider{})

	err := svc.SendOrderConfirmation(context.Background(), nil)
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotFound)
}
