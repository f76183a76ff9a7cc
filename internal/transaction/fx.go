package transaction

import (
	"github.com/smallbiznis/paysync/internal/transaction/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction",
	fx.Provide(repository.Provide),
)
