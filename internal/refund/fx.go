package refund

import (
	"github.com/smallbiznis/paysync/internal/refund/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("refund",
	fx.Provide(repository.Provide),
)
