package payout

import (
	"github.com/smallbiznis/rentledger/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout",
	fx.Provide(service.NewService),
)
