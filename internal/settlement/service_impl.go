package settlement

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	workqueuedomain "github.com/smallbiznis/rentledger/internal/workqueue/domain"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Payouts   payoutdomain.Service
	WorkQueue workqueuedomain.Service
}

// Service drives a closed lease's final settlement: it runs the completion
// checks and moves finalSettlementStatus forward, never back.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	payouts   payoutdomain.Service
	workqueue workqueuedomain.Service
	checks    []Check

	contractrepo   repository.Repository[contractdomain.Contract]
	correctionrepo repository.Repository[correctiondomain.Correction]
	invoicerepo    repository.Repository[invoicedomain.Invoice]
	payoutrepo     repository.Repository[payoutdomain.Payout]
	paymentrepo    repository.Repository[paymentdomain.InvoicePayment]
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("settlement.service"),
		clock:     p.Clock,
		payouts:   p.Payouts,
		workqueue: p.WorkQueue,
		checks:    Checks(),

		contractrepo:   repository.ProvideStore[contractdomain.Contract](p.DB),
		correctionrepo: repository.ProvideStore[correctiondomain.Correction](p.DB),
		invoicerepo:    repository.ProvideStore[invoicedomain.Invoice](p.DB),
		payoutrepo:     repository.ProvideStore[payoutdomain.Payout](p.DB),
		paymentrepo:    repository.ProvideStore[paymentdomain.InvoicePayment](p.DB),
	}
}

// IsSettlementNeeded reports whether any completion check still blocks the
// contract. It never mutates state.
func (s *Service) IsSettlementNeeded(ctx context.Context, contractID snowflake.ID) (bool, error) {
	snapshot, err := s.load(ctx, contractID)
	if err != nil {
		return false, err
	}
	blocked, _ := s.firstBlocked(snapshot)
	return blocked, nil
}

// Evaluate runs the checks and advances the contract's settlement status.
// A blocked contract in status none enters in_progress, gets its zero-amount
// closing payout, and a correction-invoice job is queued for the worker; an
// unblocked contract is marked completed. Repeated invoice and payout events
// re-run Evaluate until nothing blocks.
func (s *Service) Evaluate(ctx context.Context, contractID snowflake.ID) (bool, error) {
	snapshot, err := s.load(ctx, contractID)
	if err != nil {
		return false, err
	}
	contract := snapshot.Contract

	if contract.FinalSettlementStatus == contractdomain.SettlementStatusCompleted {
		return false, nil
	}
	if !contract.IsClosed() {
		return false, fmt.Errorf("contract %s is still active", contractID)
	}

	blocked, check := s.firstBlocked(snapshot)
	if !blocked {
		if err := s.contractrepo.Update(ctx, contractID.String(), map[string]any{
			"final_settlement_status":  contractdomain.SettlementStatusCompleted,
			"is_final_settlement_done": true,
			"updated_at":               s.clock.Now(),
		}); err != nil {
			return false, fmt.Errorf("complete settlement: %w", err)
		}
		if _, err := s.workqueue.Enqueue(ctx,
			"settlement.completed",
			workqueuedomain.ActionPrepareEsignDocument,
			map[string]any{"contractId": contractID.String()},
			workqueuedomain.DestinationEsignWorker,
			0,
		); err != nil {
			return false, fmt.Errorf("enqueue esign document job: %w", err)
		}

		s.log.Info("final settlement completed", zap.String("contract_id", contractID.String()))
		return false, nil
	}

	s.log.Info("final settlement still blocked",
		zap.String("contract_id", contractID.String()),
		zap.String("check", check))

	if contract.FinalSettlementStatus == contractdomain.SettlementStatusNone {
		if err := s.enterInProgress(ctx, contract); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (s *Service) enterInProgress(ctx context.Context, contract *contractdomain.Contract) error {
	if err := s.contractrepo.Update(ctx, contract.ID.String(), map[string]any{
		"final_settlement_status": contractdomain.SettlementStatusInProgress,
		"updated_at":              s.clock.Now(),
	}); err != nil {
		return fmt.Errorf("enter in_progress: %w", err)
	}

	if _, err := s.payouts.CreateClosingPayout(ctx, contract.ID); err != nil {
		return fmt.Errorf("create closing payout: %w", err)
	}

	if _, err := s.workqueue.Enqueue(ctx,
		"settlement.in_progress",
		workqueuedomain.ActionCreateCorrectionInvoice,
		map[string]any{"contractId": contract.ID.String()},
		workqueuedomain.DestinationInvoiceWorker,
		0,
	); err != nil {
		return fmt.Errorf("enqueue correction invoice job: %w", err)
	}

	s.log.Info("final settlement started", zap.String("contract_id", contract.ID.String()))
	return nil
}

func (s *Service) firstBlocked(snapshot *Snapshot) (bool, string) {
	status := snapshot.Contract.FinalSettlementStatus
	for _, check := range s.checks {
		if !check.Applies(status) {
			continue
		}
		if check.Blocked(snapshot) {
			return true, check.Name()
		}
	}
	return false, ""
}

func (s *Service) load(ctx context.Context, contractID snowflake.ID) (*Snapshot, error) {
	contract, err := s.contractrepo.FindOne(ctx, &contractdomain.Contract{ID: contractID})
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}
	if contract == nil {
		return nil, fmt.Errorf("contract %s not found", contractID)
	}

	corrections, err := s.correctionrepo.Find(ctx, &correctiondomain.Correction{ContractID: contractID})
	if err != nil {
		return nil, fmt.Errorf("load corrections: %w", err)
	}
	invoices, err := s.invoicerepo.Find(ctx, &invoicedomain.Invoice{ContractID: contractID})
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	payouts, err := s.payoutrepo.Find(ctx, &payoutdomain.Payout{ContractID: contractID})
	if err != nil {
		return nil, fmt.Errorf("load payouts: %w", err)
	}
	payments, err := s.paymentrepo.Find(ctx, &paymentdomain.InvoicePayment{ContractID: contractID})
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	return &Snapshot{
		Contract:    contract,
		Corrections: corrections,
		Invoices:    invoices,
		Payouts:     payouts,
		Payments:    payments,
	}, nil
}
