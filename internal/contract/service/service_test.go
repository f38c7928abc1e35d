package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/rentledger/internal/balancing"
	"github.com/smallbiznis/rentledger/internal/bankref"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	payoutservice "github.com/smallbiznis/rentledger/internal/payout/service"
	"github.com/smallbiznis/rentledger/internal/settlement"
	settingsdomain "github.com/smallbiznis/rentledger/internal/settings/domain"
	settingsrepo "github.com/smallbiznis/rentledger/internal/settings/repository"
	workqueuedomain "github.com/smallbiznis/rentledger/internal/workqueue/domain"
	workqueueservice "github.com/smallbiznis/rentledger/internal/workqueue/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newContractService(t *testing.T) (contractdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&contractdomain.Contract{},
		&invoicedomain.Invoice{},
		&payoutdomain.Payout{},
		&correctiondomain.Correction{},
		&paymentdomain.InvoicePayment{},
		&settingsdomain.PartnerSettings{},
		&workqueuedomain.Job{},
		&bankref.Sequence{},
	))

	node, err := snowflake.NewNode(8)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(time.Date(2023, time.August, 1, 0, 0, 0, 0, time.UTC))
	cfg := config.Config{DefaultPayoutDay: 1, BankReferenceSeed: "AA11111"}

	bal := balancing.NewService(balancing.ServiceParam{
		DB:        db,
		Log:       log,
		Metrics:   balancing.NewMetrics(nil),
		PayoutCfg: config.NewStaticPayoutConfigHolder(config.DefaultPayoutConfig()),
	})
	payouts := payoutservice.NewService(payoutservice.ServiceParam{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fake,
		Config:    cfg,
		Bankref:   bankref.NewAllocator(db, cfg.BankReferenceSeed),
		Settings:  settingsrepo.NewProvider(db),
		Balancing: bal,
	})
	settle := settlement.NewService(settlement.ServiceParam{
		DB:        db,
		Log:       log,
		Clock:     fake,
		Payouts:   payouts,
		WorkQueue: workqueueservice.NewService(workqueueservice.ServiceParam{DB: db, Log: log, GenID: node}),
	})
	svc := NewService(ServiceParam{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Settlement: settle,
	})
	return svc, db, node
}

func TestCreateContract(t *testing.T) {
	svc, _, node := newContractService(t)
	ctx := context.Background()

	day := 15
	contract, err := svc.Create(ctx, contractdomain.CreateContractRequest{
		PartnerID:         node.Generate(),
		PropertyID:        node.Generate(),
		AccountID:         node.Generate(),
		TenantIDs:         []int64{101, 102},
		MonthlyPayoutDate: &day,
	})
	require.NoError(t, err)

	assert.Equal(t, contractdomain.ContractStatusActive, contract.Status)
	assert.Equal(t, contractdomain.SettlementStatusNone, contract.FinalSettlementStatus)
	require.NotNil(t, contract.MonthlyPayoutDate)
	assert.Equal(t, 15, *contract.MonthlyPayoutDate)
}

func TestCreateRejectsOutOfRangePayoutDate(t *testing.T) {
	svc, _, node := newContractService(t)
	ctx := context.Background()

	day := 31
	_, err := svc.Create(ctx, contractdomain.CreateContractRequest{
		PartnerID:         node.Generate(),
		MonthlyPayoutDate: &day,
	})
	require.Error(t, err)
}

func TestCloseSettledContractCompletes(t *testing.T) {
	svc, db, node := newContractService(t)
	ctx := context.Background()

	contract, err := svc.Create(ctx, contractdomain.CreateContractRequest{
		PartnerID: node.Generate(),
	})
	require.NoError(t, err)

	closed, err := svc.Close(ctx, contract.ID)
	require.NoError(t, err)

	assert.True(t, closed.IsClosed())
	assert.Equal(t, contractdomain.SettlementStatusCompleted, closed.FinalSettlementStatus)
	assert.True(t, closed.IsFinalSettlementDone)

	var jobs []workqueuedomain.Job
	require.NoError(t, db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	assert.Equal(t, workqueuedomain.ActionPrepareEsignDocument, jobs[0].Action)
}

func TestCloseBlockedContractStartsSettlement(t *testing.T) {
	svc, db, node := newContractService(t)
	ctx := context.Background()

	contract, err := svc.Create(ctx, contractdomain.CreateContractRequest{
		PartnerID: node.Generate(),
	})
	require.NoError(t, err)

	require.NoError(t, db.Create(&invoicedomain.Invoice{
		ID:           node.Generate(),
		ContractID:   contract.ID,
		InvoiceType:  invoicedomain.InvoiceTypeRent,
		Status:       invoicedomain.InvoiceStatusOverdue,
		InvoiceTotal: 400,
		TotalPaid:    100,
	}).Error)

	closed, err := svc.Close(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, contractdomain.SettlementStatusInProgress, closed.FinalSettlementStatus)

	var payouts []payoutdomain.Payout
	require.NoError(t, db.Find(&payouts, "contract_id = ?", contract.ID).Error)
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].IsFinalSettlement)
	assert.Equal(t, 0.0, payouts[0].Amount)

	var jobs int64
	require.NoError(t, db.Model(&workqueuedomain.Job{}).Count(&jobs).Error)
	assert.Equal(t, int64(1), jobs)

	_, err = svc.Close(ctx, contract.ID)
	require.Error(t, err, "closing twice is rejected")
}
