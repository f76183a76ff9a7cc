package paymentmethod

import (
	"github.com/smallbiznis/paysync/internal/paymentmethod/repository"
	"github.com/smallbiznis/paysync/internal/paymentmethod/service"
	"go.uber.org/fx"
)

var Module = fx.Module("paymentmethod",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
