package ordermail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	orderdomain "github.com/smallbiznis/paysync/internal/order/domain"
	"github.com/smallbiznis/paysync/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ordermail",
	fx.Provide(NewService),
)

const confirmationTemplate = `<html><body>
<p>Hi {{.CustomerName}},</p>
<p>Your payment for order <strong>{{.Number}}</strong> has been confirmed.</p>
<p>Total: {{.Total}} {{.Currency}}</p>
</body></html>`

type Params struct {
	fx.In

	Log      *zap.Logger
	Provider email.Provider
}

// Service sends the order confirmation mail once a gateway transaction
// reaches a success state.
type Service struct {
	log      *zap.Logger
	provider email.Provider
	tmpl     *template.Template
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("ordermail"),
		provider: p.Provider,
		tmpl:     template.Must(template.New("order_confirmation").Parse(confirmationTemplate)),
	}
}

func (s *Service) SendOrderConfirmation(ctx context.Context, order *orderdomain.Order) error {
	if order == nil {
		return orderdomain.ErrOrderNotFound
	}
	if order.CustomerEmail == "" {
		s.log.Warn("order has no customer email, skipping confirmation",
			zap.String("order_id", order.ID.String()),
		)
		return nil
	}

	var body bytes.Buffer
	err := s.tmpl.Execute(&body, map[string]any{
		"CustomerName": order.CustomerName,
		"Number":       order.Number,
		"Total":        fmt.Sprintf("%d.%02d", order.TotalAmount/100, order.TotalAmount%100),
		"Currency":     order.Currency,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Payment confirmed for order %s", order.Number)
	return s.provider.Send(ctx, []string{order.CustomerEmail}, subject, body.String())
}
