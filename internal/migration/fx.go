package migration

import (
	"strings"

	"github.com/smallbiznis/rentledger/internal/config"
	bankref "github.com/smallbiznis/rentledger/internal/bankref"
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	settingsdomain "github.com/smallbiznis/rentledger/internal/settings/domain"
	workqueuedomain "github.com/smallbiznis/rentledger/internal/workqueue/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// non-postgres engines (sqlite dev mode) fall back to AutoMigrate
		if !strings.EqualFold(cfg.DBType, "postgres") {
			return conn.AutoMigrate(
				&contractdomain.Contract{},
				&invoicedomain.Invoice{},
				&correctiondomain.Correction{},
				&paymentdomain.InvoicePayment{},
				&payoutdomain.Payout{},
				&workqueuedomain.Job{},
				&settingsdomain.PartnerSettings{},
				&bankref.Sequence{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
