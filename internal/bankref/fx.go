package bankref

import (
	"github.com/smallbiznis/rentledger/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("bankref",
	fx.Provide(func(db *gorm.DB, cfg config.Config) Allocator {
		return NewAllocator(db, cfg.BankReferenceSeed)
	}),
)
