package workqueue

import (
	"github.com/smallbiznis/rentledger/internal/workqueue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workqueue",
	fx.Provide(service.NewService),
)
