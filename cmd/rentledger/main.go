package main

import (
	"hash/fnv"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/balancing"
	"github.com/smallbiznis/rentledger/internal/bankref"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	"github.com/smallbiznis/rentledger/internal/contract"
	"github.com/smallbiznis/rentledger/internal/correction"
	"github.com/smallbiznis/rentledger/internal/invoice"
	"github.com/smallbiznis/rentledger/internal/migration"
	"github.com/smallbiznis/rentledger/internal/payment"
	"github.com/smallbiznis/rentledger/internal/payout"
	"github.com/smallbiznis/rentledger/internal/server"
	"github.com/smallbiznis/rentledger/internal/settings"
	"github.com/smallbiznis/rentledger/internal/settlement"
	"github.com/smallbiznis/rentledger/internal/workqueue"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// functional domains
		settings.Module,
		bankref.Module,
		balancing.Module,
		payout.Module,
		invoice.Module,
		correction.Module,
		payment.Module,
		workqueue.Module,
		settlement.Module,
		contract.Module,

		server.Module,
	)

	app.Run()
}

// RegisterSnowflake derives a stable node id from the host name so replicas
// do not mint colliding ids.
func RegisterSnowflake() (*snowflake.Node, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "rentledger"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	return snowflake.NewNode(int64(h.Sum32() % 1024))
}
