package correction

import (
	"github.com/smallbiznis/rentledger/internal/correction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("correction",
	fx.Provide(service.NewService),
)
