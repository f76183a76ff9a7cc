package settings

import (
	"github.com/smallbiznis/paysync/internal/settings/repository"
	"github.com/smallbiznis/paysync/internal/settings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settings",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
