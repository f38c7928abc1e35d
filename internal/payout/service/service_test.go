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
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	settingsrepo "github.com/smallbiznis/rentledger/internal/settings/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	settingsdomain "github.com/smallbiznis/rentledger/internal/settings/domain"
)

func newPayoutService(t *testing.T) (payoutdomain.Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&contractdomain.Contract{},
		&invoicedomain.Invoice{},
		&payoutdomain.Payout{},
		&correctiondomain.Correction{},
		&settingsdomain.PartnerSettings{},
		&bankref.Sequence{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2023, time.March, 10, 12, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	cfg := config.Config{DefaultPayoutDay: 1, BankReferenceSeed: "AA11111"}
	bal := balancing.NewService(balancing.ServiceParam{
		DB:        db,
		Log:       log,
		Metrics:   balancing.NewMetrics(nil),
		PayoutCfg: config.NewStaticPayoutConfigHolder(config.DefaultPayoutConfig()),
	})

	svc := NewService(ServiceParam{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fake,
		Config:    cfg,
		Bankref:   bankref.NewAllocator(db, cfg.BankReferenceSeed),
		Settings:  settingsrepo.NewProvider(db),
		Balancing: bal,
	})
	return svc, db, node, fake
}

func seedContract(t *testing.T, db *gorm.DB, node *snowflake.Node) *contractdomain.Contract {
	t.Helper()
	contract := &contractdomain.Contract{
		ID:         node.Generate(),
		PartnerID:  node.Generate(),
		PropertyID: node.Generate(),
		AccountID:  node.Generate(),
		Status:     contractdomain.ContractStatusActive,
	}
	require.NoError(t, db.Create(contract).Error)
	return contract
}

func rentInvoice(contract *contractdomain.Contract, node *snowflake.Node, payoutable float64) *invoicedomain.Invoice {
	return &invoicedomain.Invoice{
		ID:               node.Generate(),
		ContractID:       contract.ID,
		PartnerID:        contract.PartnerID,
		PropertyID:       contract.PropertyID,
		AccountID:        contract.AccountID,
		InvoiceType:      invoicedomain.InvoiceTypeRent,
		Status:           invoicedomain.InvoiceStatusPaid,
		PayoutableAmount: payoutable,
	}
}

func TestBuildMetaBaseEntry(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	inv := &invoicedomain.Invoice{
		ID:               node.Generate(),
		InvoiceType:      invoicedomain.InvoiceTypeRent,
		PayoutableAmount: 820.50,
	}
	result := BuildMeta(inv, nil)

	require.Len(t, result.Meta, 1)
	assert.Equal(t, payoutdomain.MetaTypeRentInvoice, result.Meta[0].Type)
	assert.Equal(t, 820.50, result.Meta[0].Amount)
	require.NotNil(t, result.Meta[0].InvoiceID)
	assert.Equal(t, inv.ID, *result.Meta[0].InvoiceID)
	assert.Equal(t, 820.50, result.TotalAmount)
}

func TestBuildMetaCreditNoteUsesCreditType(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	inv := &invoicedomain.Invoice{
		ID:               node.Generate(),
		InvoiceType:      invoicedomain.InvoiceTypeCreditNote,
		PayoutableAmount: -120,
	}
	result := BuildMeta(inv, nil)

	require.Len(t, result.Meta, 1)
	assert.Equal(t, payoutdomain.MetaTypeCreditRentInvoice, result.Meta[0].Type)
	assert.Equal(t, -120.0, result.TotalAmount)
}

func TestBuildMetaCarriesFailedPayoutForward(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	failed := &payoutdomain.Payout{
		ID:       node.Generate(),
		SerialID: 1,
		Amount:   150,
		Status:   payoutdomain.PayoutStatusFailed,
	}
	inv := &invoicedomain.Invoice{
		ID:               node.Generate(),
		InvoiceType:      invoicedomain.InvoiceTypeRent,
		PayoutableAmount: -40,
	}

	result := BuildMeta(inv, []*payoutdomain.Payout{failed})

	require.Len(t, result.Meta, 2)
	assert.Equal(t, payoutdomain.MetaTypeUnpaidEarlierPayout, result.Meta[1].Type)
	assert.Equal(t, 150.0, result.Meta[1].Amount)
	require.NotNil(t, result.Meta[1].PayoutID)
	assert.Equal(t, failed.ID, *result.Meta[1].PayoutID)
	assert.Equal(t, 110.0, result.TotalAmount)
}

func TestBuildMetaCarriesNegativePayoutForward(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	negativeID := node.Generate()
	negative := &payoutdomain.Payout{
		ID:       negativeID,
		SerialID: 1,
		Amount:   -35.50,
		Status:   payoutdomain.PayoutStatusCompleted,
		Meta: payoutdomain.MetaList{
			{Type: payoutdomain.MetaTypeRentInvoice, Amount: -35.50},
		},
	}
	inv := &invoicedomain.Invoice{
		ID:               node.Generate(),
		InvoiceType:      invoicedomain.InvoiceTypeRent,
		PayoutableAmount: 500,
	}

	result := BuildMeta(inv, []*payoutdomain.Payout{negative})

	require.Len(t, result.Meta, 2)
	assert.Equal(t, payoutdomain.MetaTypeUnpaidExpenses, result.Meta[1].Type)
	assert.Equal(t, -35.50, result.Meta[1].Amount)
	assert.Equal(t, 464.50, result.TotalAmount)
}

func TestBuildMetaCarriesRoundingDrift(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	// completed payout whose chain under-sums its amount by 0.60
	last := &payoutdomain.Payout{
		ID:       node.Generate(),
		SerialID: 2,
		Amount:   100,
		Status:   payoutdomain.PayoutStatusCompleted,
		Meta: payoutdomain.MetaList{
			{Type: payoutdomain.MetaTypeRentInvoice, Amount: 99.40},
		},
	}
	inv := &invoicedomain.Invoice{
		ID:               node.Generate(),
		InvoiceType:      invoicedomain.InvoiceTypeRent,
		PayoutableAmount: 300,
	}

	result := BuildMeta(inv, []*payoutdomain.Payout{last})

	require.Len(t, result.Meta, 2)
	assert.Equal(t, payoutdomain.MetaTypeUnpaidExpenses, result.Meta[1].Type)
	assert.Equal(t, -0.60, result.Meta[1].Amount)
	require.NotNil(t, result.Meta[1].PayoutID)
	assert.Equal(t, last.ID, *result.Meta[1].PayoutID)
	assert.Equal(t, 299.40, result.TotalAmount)
}

func TestBuildMetaSkipsDriftOfCarriedPayout(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	// the failed payout has no meta at all; its amount is carried in full,
	// so its shortfall must not also be appended
	failed := &payoutdomain.Payout{
		ID:       node.Generate(),
		SerialID: 3,
		Amount:   150,
		Status:   payoutdomain.PayoutStatusFailed,
	}
	inv := &invoicedomain.Invoice{
		ID:               node.Generate(),
		InvoiceType:      invoicedomain.InvoiceTypeRent,
		PayoutableAmount: -40,
	}

	result := BuildMeta(inv, []*payoutdomain.Payout{failed})
	assert.Equal(t, 110.0, result.TotalAmount)
	assert.Len(t, result.Meta, 2)
}

func TestCreateForInvoicePersistsEstimatedPayout(t *testing.T) {
	svc, db, node, _ := newPayoutService(t)
	ctx := context.Background()
	contract := seedContract(t, db, node)

	inv := rentInvoice(contract, node, 750)
	require.NoError(t, db.Create(inv).Error)

	payout, err := svc.CreateForInvoice(ctx, inv)
	require.NoError(t, err)

	assert.Equal(t, payoutdomain.PayoutStatusEstimated, payout.Status)
	assert.Equal(t, payoutdomain.PaymentStatusPending, payout.PaymentStatus)
	assert.Equal(t, int64(1), payout.SerialID)
	assert.Equal(t, 750.0, payout.Amount)
	assert.Equal(t, "AA11111", payout.BankReferenceID)
	require.NotNil(t, payout.PayoutDate)

	var stored payoutdomain.Payout
	require.NoError(t, db.First(&stored, "id = ?", payout.ID).Error)
	assert.Equal(t, payout.Amount, stored.Amount)
	require.Len(t, stored.Meta, 1)
}

func TestCreateForInvoiceZeroTotalCompletesImmediately(t *testing.T) {
	svc, db, node, _ := newPayoutService(t)
	ctx := context.Background()
	contract := seedContract(t, db, node)

	inv := rentInvoice(contract, node, 0)
	require.NoError(t, db.Create(inv).Error)

	payout, err := svc.CreateForInvoice(ctx, inv)
	require.NoError(t, err)
	assert.Equal(t, payoutdomain.PayoutStatusCompleted, payout.Status)
}

func TestCreateForInvoiceAdvancesSerialAndReference(t *testing.T) {
	svc, db, node, _ := newPayoutService(t)
	ctx := context.Background()
	contract := seedContract(t, db, node)

	first := rentInvoice(contract, node, 100)
	require.NoError(t, db.Create(first).Error)
	p1, err := svc.CreateForInvoice(ctx, first)
	require.NoError(t, err)

	second := rentInvoice(contract, node, 200)
	require.NoError(t, db.Create(second).Error)
	p2, err := svc.CreateForInvoice(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, int64(1), p1.SerialID)
	assert.Equal(t, int64(2), p2.SerialID)
	assert.Equal(t, "AA11111", p1.BankReferenceID)
	assert.Equal(t, "AA11112", p2.BankReferenceID)
}

func TestCreateForInvoiceHonorsContractPayoutDate(t *testing.T) {
	svc, db, node, _ := newPayoutService(t)
	ctx := context.Background()

	day := 25
	contract := &contractdomain.Contract{
		ID:                node.Generate(),
		PartnerID:         node.Generate(),
		PropertyID:        node.Generate(),
		AccountID:         node.Generate(),
		Status:            contractdomain.ContractStatusActive,
		MonthlyPayoutDate: &day,
	}
	require.NoError(t, db.Create(contract).Error)
	require.NoError(t, db.Create(&settingsdomain.PartnerSettings{
		PartnerID:          contract.PartnerID,
		StandardPayoutDate: 5,
		Timezone:           "UTC",
	}).Error)

	inv := rentInvoice(contract, node, 300)
	require.NoError(t, db.Create(inv).Error)

	payout, err := svc.CreateForInvoice(ctx, inv)
	require.NoError(t, err)
	require.NotNil(t, payout.PayoutDate)

	// clock is 2023-03-10; the contract override (25th) is still ahead
	assert.Equal(t, 25, payout.PayoutDate.Day())
	assert.Equal(t, time.March, payout.PayoutDate.Month())
}

func TestCreateForInvoicePartnerDateRollsToNextMonth(t *testing.T) {
	svc, db, node, _ := newPayoutService(t)
	ctx := context.Background()
	contract := seedContract(t, db, node)

	require.NoError(t, db.Create(&settingsdomain.PartnerSettings{
		PartnerID:          contract.PartnerID,
		StandardPayoutDate: 5,
		Timezone:           "UTC",
	}).Error)

	inv := rentInvoice(contract, node, 300)
	require.NoError(t, db.Create(inv).Error)

	payout, err := svc.CreateForInvoice(ctx, inv)
	require.NoError(t, err)
	require.NotNil(t, payout.PayoutDate)

	// clock is 2023-03-10, past the 5th, so disbursement moves to April
	assert.Equal(t, 5, payout.PayoutDate.Day())
	assert.Equal(t, time.April, payout.PayoutDate.Month())
}

func TestHandleFailedMarksPayout(t *testing.T) {
	svc, db, node, _ := newPayoutService(t)
	ctx := context.Background()
	contract := seedContract(t, db, node)

	inv := rentInvoice(contract, node, 400)
	require.NoError(t, db.Create(inv).Error)
	payout, err := svc.CreateForInvoice(ctx, inv)
	require.NoError(t, err)

	require.NoError(t, svc.HandleFailed(ctx, payout.ID))

	var stored payoutdomain.Payout
	require.NoError(t, db.First(&stored, "id = ?", payout.ID).Error)
	assert.Equal(t, payoutdomain.PayoutStatusFailed, stored.Status)
}

func TestHandlePaidCompletesAndBalances(t *testing.T) {
	svc, db, node, _ := newPayoutService(t)
	ctx := context.Background()
	contract := seedContract(t, db, node)

	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	landlord := &invoicedomain.Invoice{
		ID:               node.Generate(),
		ContractID:       contract.ID,
		PartnerID:        contract.PartnerID,
		PropertyID:       contract.PropertyID,
		AccountID:        contract.AccountID,
		InvoiceType:      invoicedomain.InvoiceTypeLandlord,
		Status:           invoicedomain.InvoiceStatusNew,
		InvoiceTotal:     80,
		RemainingBalance: 80,
		InvoiceStartOn:   &start,
		CommissionsMeta:  invoicedomain.ObligationList{{Label: "commission", Total: 80}},
		CreatedAt:        start,
	}
	require.NoError(t, db.Create(landlord).Error)

	inv := rentInvoice(contract, node, 200)
	require.NoError(t, db.Create(inv).Error)
	payout, err := svc.CreateForInvoice(ctx, inv)
	require.NoError(t, err)

	require.NoError(t, svc.HandlePaid(ctx, payout.ID))

	var stored payoutdomain.Payout
	require.NoError(t, db.First(&stored, "id = ?", payout.ID).Error)
	assert.Equal(t, payoutdomain.PayoutStatusCompleted, stored.Status)

	var balanced invoicedomain.Invoice
	require.NoError(t, db.First(&balanced, "id = ?", landlord.ID).Error)
	assert.Equal(t, 80.0, balanced.TotalBalanced)
	assert.Equal(t, 0.0, balanced.RemainingBalance)
	assert.Equal(t, invoicedomain.InvoiceStatusBalanced, balanced.Status)
}

func TestCreateClosingPayoutIsZeroAndFinal(t *testing.T) {
	svc, db, node, _ := newPayoutService(t)
	ctx := context.Background()
	contract := seedContract(t, db, node)

	payout, err := svc.CreateClosingPayout(ctx, contract.ID)
	require.NoError(t, err)

	assert.True(t, payout.IsFinalSettlement)
	assert.Equal(t, 0.0, payout.Amount)
	assert.Equal(t, payoutdomain.PayoutStatusCompleted, payout.Status)
	assert.Equal(t, payoutdomain.PaymentStatusBalanced, payout.PaymentStatus)
	assert.NotEmpty(t, payout.BankReferenceID)
}

func TestListByContractOrdersBySerial(t *testing.T) {
	svc, db, node, _ := newPayoutService(t)
	ctx := context.Background()
	contract := seedContract(t, db, node)

	for _, amount := range []float64{10, 20, 30} {
		inv := rentInvoice(contract, node, amount)
		require.NoError(t, db.Create(inv).Error)
		_, err := svc.CreateForInvoice(ctx, inv)
		require.NoError(t, err)
	}

	payouts, err := svc.ListByContract(ctx, contract.ID)
	require.NoError(t, err)
	require.Len(t, payouts, 3)
	for i, p := range payouts {
		assert.Equal(t, int64(i+1), p.SerialID)
	}
}
