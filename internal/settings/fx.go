package settings

import (
	"github.com/smallbiznis/rentledger/internal/settings/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("settings",
	fx.Provide(repository.NewProvider),
)
