package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/rentledger/internal/clock"
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	workqueuedomain "github.com/smallbiznis/rentledger/internal/workqueue/domain"
	workqueueservice "github.com/smallbiznis/rentledger/internal/workqueue/service"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// stubPayouts records closing-payout requests without the full builder.
type stubPayouts struct {
	payoutdomain.Service
	closedFor []snowflake.ID
}

func (s *stubPayouts) CreateClosingPayout(ctx context.Context, contractID snowflake.ID) (payoutdomain.Payout, error) {
	s.closedFor = append(s.closedFor, contractID)
	return payoutdomain.Payout{ContractID: contractID, IsFinalSettlement: true}, nil
}

func newSettlementService(t *testing.T) (*Service, *stubPayouts, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&contractdomain.Contract{},
		&correctiondomain.Correction{},
		&invoicedomain.Invoice{},
		&payoutdomain.Payout{},
		&paymentdomain.InvoicePayment{},
		&workqueuedomain.Job{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	payouts := &stubPayouts{}
	svc := &Service{
		db:        db,
		log:       log,
		clock:     clock.NewFakeClock(time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)),
		payouts:   payouts,
		workqueue: workqueueservice.NewService(workqueueservice.ServiceParam{DB: db, Log: log, GenID: node}),
		checks:    Checks(),

		contractrepo:   repository.ProvideStore[contractdomain.Contract](db),
		correctionrepo: repository.ProvideStore[correctiondomain.Correction](db),
		invoicerepo:    repository.ProvideStore[invoicedomain.Invoice](db),
		payoutrepo:     repository.ProvideStore[payoutdomain.Payout](db),
		paymentrepo:    repository.ProvideStore[paymentdomain.InvoicePayment](db),
	}
	return svc, payouts, db, node
}

func seedClosedContract(t *testing.T, db *gorm.DB, node *snowflake.Node) *contractdomain.Contract {
	t.Helper()
	contract := &contractdomain.Contract{
		ID:                    node.Generate(),
		PartnerID:             node.Generate(),
		PropertyID:            node.Generate(),
		AccountID:             node.Generate(),
		Status:                contractdomain.ContractStatusClosed,
		FinalSettlementStatus: contractdomain.SettlementStatusNone,
	}
	require.NoError(t, db.Create(contract).Error)
	return contract
}

func TestOpenCorrectionBlocksSettlement(t *testing.T) {
	svc, _, db, node := newSettlementService(t)
	ctx := context.Background()
	contract := seedClosedContract(t, db, node)

	// everything else fully resolved
	require.NoError(t, db.Create(&invoicedomain.Invoice{
		ID:           node.Generate(),
		ContractID:   contract.ID,
		InvoiceType:  invoicedomain.InvoiceTypeRent,
		Status:       invoicedomain.InvoiceStatusPaid,
		InvoiceTotal: 500,
		TotalPaid:    500,
	}).Error)
	require.NoError(t, db.Create(&payoutdomain.Payout{
		ID:            node.Generate(),
		ContractID:    contract.ID,
		SerialID:      1,
		Amount:        500,
		Status:        payoutdomain.PayoutStatusCompleted,
		PaymentStatus: payoutdomain.PaymentStatusPaid,
	}).Error)

	require.NoError(t, db.Create(&correctiondomain.Correction{
		ID:         node.Generate(),
		ContractID: contract.ID,
		Amount:     25,
		Status:     correctiondomain.CorrectionStatusActive,
		AddTo:      correctiondomain.CorrectionTargetRentInvoice,
	}).Error)

	needed, err := svc.IsSettlementNeeded(ctx, contract.ID)
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestCompletionScenario(t *testing.T) {
	svc, _, db, node := newSettlementService(t)
	ctx := context.Background()
	contract := seedClosedContract(t, db, node)

	require.NoError(t, db.Create(&invoicedomain.Invoice{
		ID:           node.Generate(),
		ContractID:   contract.ID,
		InvoiceType:  invoicedomain.InvoiceTypeRent,
		Status:       invoicedomain.InvoiceStatusPaid,
		InvoiceTotal: 1200,
		TotalPaid:    1200,
	}).Error)
	require.NoError(t, db.Create(&payoutdomain.Payout{
		ID:            node.Generate(),
		ContractID:    contract.ID,
		SerialID:      1,
		Amount:        1000,
		Status:        payoutdomain.PayoutStatusCompleted,
		PaymentStatus: payoutdomain.PaymentStatusBalanced,
	}).Error)

	needed, err := svc.Evaluate(ctx, contract.ID)
	require.NoError(t, err)
	assert.False(t, needed)

	var stored contractdomain.Contract
	require.NoError(t, db.First(&stored, "id = ?", contract.ID).Error)
	assert.Equal(t, contractdomain.SettlementStatusCompleted, stored.FinalSettlementStatus)
	assert.True(t, stored.IsFinalSettlementDone)

	var jobs []workqueuedomain.Job
	require.NoError(t, db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	assert.Equal(t, workqueuedomain.ActionPrepareEsignDocument, jobs[0].Action)
	assert.Equal(t, workqueuedomain.DestinationEsignWorker, jobs[0].Destination)
}

func TestBlockedContractEntersInProgress(t *testing.T) {
	svc, payouts, db, node := newSettlementService(t)
	ctx := context.Background()
	contract := seedClosedContract(t, db, node)

	require.NoError(t, db.Create(&invoicedomain.Invoice{
		ID:           node.Generate(),
		ContractID:   contract.ID,
		InvoiceType:  invoicedomain.InvoiceTypeRent,
		Status:       invoicedomain.InvoiceStatusOverdue,
		InvoiceTotal: 800,
		TotalPaid:    600,
	}).Error)

	needed, err := svc.Evaluate(ctx, contract.ID)
	require.NoError(t, err)
	assert.True(t, needed)

	var stored contractdomain.Contract
	require.NoError(t, db.First(&stored, "id = ?", contract.ID).Error)
	assert.Equal(t, contractdomain.SettlementStatusInProgress, stored.FinalSettlementStatus)
	assert.False(t, stored.IsFinalSettlementDone)

	require.Len(t, payouts.closedFor, 1)
	assert.Equal(t, contract.ID, payouts.closedFor[0])

	var jobs []workqueuedomain.Job
	require.NoError(t, db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	assert.Equal(t, workqueuedomain.ActionCreateCorrectionInvoice, jobs[0].Action)
	assert.Equal(t, workqueuedomain.DestinationInvoiceWorker, jobs[0].Destination)
}

func TestInProgressDoesNotReenqueue(t *testing.T) {
	svc, payouts, db, node := newSettlementService(t)
	ctx := context.Background()
	contract := seedClosedContract(t, db, node)

	require.NoError(t, db.Create(&invoicedomain.Invoice{
		ID:           node.Generate(),
		ContractID:   contract.ID,
		InvoiceType:  invoicedomain.InvoiceTypeRent,
		Status:       invoicedomain.InvoiceStatusOverdue,
		InvoiceTotal: 800,
		TotalPaid:    600,
	}).Error)

	_, err := svc.Evaluate(ctx, contract.ID)
	require.NoError(t, err)
	_, err = svc.Evaluate(ctx, contract.ID)
	require.NoError(t, err)

	assert.Len(t, payouts.closedFor, 1)
	var count int64
	require.NoError(t, db.Model(&workqueuedomain.Job{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCompletedContractStaysCompleted(t *testing.T) {
	svc, _, db, node := newSettlementService(t)
	ctx := context.Background()

	contract := &contractdomain.Contract{
		ID:                    node.Generate(),
		Status:                contractdomain.ContractStatusClosed,
		FinalSettlementStatus: contractdomain.SettlementStatusCompleted,
		IsFinalSettlementDone: true,
	}
	require.NoError(t, db.Create(contract).Error)

	// a late blocker must not drag the contract backward
	require.NoError(t, db.Create(&correctiondomain.Correction{
		ID:         node.Generate(),
		ContractID: contract.ID,
		Amount:     10,
		Status:     correctiondomain.CorrectionStatusActive,
		AddTo:      correctiondomain.CorrectionTargetRentInvoice,
	}).Error)

	needed, err := svc.Evaluate(ctx, contract.ID)
	require.NoError(t, err)
	assert.False(t, needed)

	var stored contractdomain.Contract
	require.NoError(t, db.First(&stored, "id = ?", contract.ID).Error)
	assert.Equal(t, contractdomain.SettlementStatusCompleted, stored.FinalSettlementStatus)
}

func TestActiveContractIsRejected(t *testing.T) {
	svc, _, db, node := newSettlementService(t)
	ctx := context.Background()

	contract := &contractdomain.Contract{
		ID:     node.Generate(),
		Status: contractdomain.ContractStatusActive,
	}
	require.NoError(t, db.Create(contract).Error)

	_, err := svc.Evaluate(ctx, contract.ID)
	require.Error(t, err)
}

func TestInProgressBlocksOnPendingRefund(t *testing.T) {
	svc, _, db, node := newSettlementService(t)
	ctx := context.Background()

	contract := &contractdomain.Contract{
		ID:                    node.Generate(),
		Status:                contractdomain.ContractStatusClosed,
		FinalSettlementStatus: contractdomain.SettlementStatusInProgress,
	}
	require.NoError(t, db.Create(contract).Error)

	require.NoError(t, db.Create(&paymentdomain.InvoicePayment{
		ID:           node.Generate(),
		ContractID:   contract.ID,
		Type:         paymentdomain.PaymentTypeRefund,
		Amount:       30,
		RefundStatus: paymentdomain.RefundStatusInProgress,
	}).Error)

	needed, err := svc.IsSettlementNeeded(ctx, contract.ID)
	require.NoError(t, err)
	assert.True(t, needed)
}
