package balancing

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/config"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Locker    *InvoiceLocker `optional:"true"`
	Metrics   *Metrics
	PayoutCfg *config.PayoutConfigHolder
}

// Service runs balancing passes: one application of a signed amount from a
// payout against a landlord invoice's outstanding obligation entries, or
// the reverse direction from an invoice onto open estimated payouts.
//
// There is no cancellation: once a pass commits it is final, and an
// overapplication is corrected by a compensating entry, never a rollback.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	locker  *InvoiceLocker
	metrics *Metrics
	cfg     *config.PayoutConfigHolder

	invoicerepo    repository.Repository[invoicedomain.Invoice]
	payoutrepo     repository.Repository[payoutdomain.Payout]
	correctionrepo repository.Repository[correctiondomain.Correction]
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("balancing.service"),
		locker:  p.Locker,
		metrics: p.Metrics,
		cfg:     p.PayoutCfg,

		invoicerepo:    repository.ProvideStore[invoicedomain.Invoice](p.DB),
		payoutrepo:     repository.ProvideStore[payoutdomain.Payout](p.DB),
		correctionrepo: repository.ProvideStore[correctiondomain.Correction](p.DB),
	}
}

// BalancePayout distributes a payout's amount across the contract's
// unbalanced landlord invoices, oldest accounting period first. With
// adjustAll set (final-settlement reconciliation) the period filter is
// bypassed and every remaining balance is cleared in full.
func (s *Service) BalancePayout(ctx context.Context, payoutID snowflake.ID, adjustAll bool) error {
	payout, err := s.payoutrepo.FindOne(ctx, &payoutdomain.Payout{ID: payoutID})
	if err != nil {
		return fmt.Errorf("load payout: %w", err)
	}
	if payout == nil {
		return fmt.Errorf("payout %s not found", payoutID)
	}

	candidates, err := s.landlordInvoices(ctx, payout.ContractID)
	if err != nil {
		return err
	}
	corrected, err := s.invoiceCorrectionIndex(ctx, payout.ContractID)
	if err != nil {
		return err
	}

	selected := SelectUnbalancedInvoices(candidates, payout.PeriodKey(), corrected, adjustAll)

	available := payout.Amount
	for _, inv := range selected {
		if money.IsZero(available) && !adjustAll {
			break
		}
		applied, err := s.balanceOne(ctx, payout.ID, inv.ID, available, false, adjustAll)
		if err != nil {
			return err
		}
		available = money.Round2(available - applied)
	}

	return nil
}

// BalanceInvoice applies a landlord invoice's remaining balance against
// the contract's open estimated payouts, oldest first.
func (s *Service) BalanceInvoice(ctx context.Context, invoiceID snowflake.ID, adjustAll bool) error {
	inv, err := s.invoicerepo.FindOne(ctx, &invoicedomain.Invoice{ID: invoiceID})
	if err != nil {
		return fmt.Errorf("load invoice: %w", err)
	}
	if inv == nil {
		return fmt.Errorf("invoice %s not found", invoiceID)
	}

	payouts, err := s.payoutrepo.Find(ctx, &payoutdomain.Payout{ContractID: inv.ContractID})
	if err != nil {
		return fmt.Errorf("load payouts: %w", err)
	}
	corrected, err := s.payoutCorrectionIndex(ctx, inv.ContractID)
	if err != nil {
		return err
	}

	selected := SelectEstimatedPayouts(payouts, inv.PeriodKey(), corrected, adjustAll)

	for _, p := range selected {
		fresh, err := s.invoicerepo.FindOne(ctx, &invoicedomain.Invoice{ID: invoiceID})
		if err != nil {
			return err
		}
		if fresh == nil || (money.IsZero(fresh.RemainingBalance) && !adjustAll) {
			break
		}
		if _, err := s.balanceOne(ctx, p.ID, invoiceID, 0, true, adjustAll); err != nil {
			return err
		}
	}

	return nil
}

// balanceOne runs a single balancing pass between one payout and one
// landlord invoice. The whole read-modify-write sequence is serialized per
// invoice: advisory lock first, then one transaction covering the
// selector's amount resolution, the distribution, and both persists. Both
// rows are re-read inside the transaction; copies loaded by the caller
// never reach the persist. With usePayoutAmount set the pass applies the
// payout's current amount instead of available.
func (s *Service) balanceOne(ctx context.Context, payoutID, invoiceID snowflake.ID, available float64, usePayoutAmount, adjustAll bool) (float64, error) {
	ttl := time.Duration(s.cfg.Get().LockTTLSeconds) * time.Second
	token, err := s.locker.Acquire(ctx, invoiceID, ttl)
	if err != nil {
		return 0, err
	}
	defer func() {
		if relErr := s.locker.Release(ctx, invoiceID, token); relErr != nil {
			s.log.Warn("release invoice lock failed",
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(relErr))
		}
	}()

	var applied float64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.invoicerepo.WithTrx(tx).FindOne(ctx, &invoicedomain.Invoice{ID: invoiceID})
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("invoice %s not found", invoiceID)
		}

		payout, err := s.payoutrepo.WithTrx(tx).FindOne(ctx, &payoutdomain.Payout{ID: payoutID})
		if err != nil {
			return fmt.Errorf("load payout: %w", err)
		}
		if payout == nil {
			return fmt.Errorf("payout %s not found", payoutID)
		}
		if usePayoutAmount {
			available = payout.Amount
		}

		amount := PrepareAmountData(available, inv.RemainingBalance, adjustAll)
		if money.IsZero(amount) {
			return nil
		}
		direction := DirectionFor(amount)

		// Fixed order: commissions, then addons, then (final settlement
		// only) invoice content.
		remaining := amount
		inv.CommissionsMeta, remaining = Distribute(inv.CommissionsMeta, remaining, payout.ID, direction)
		if !money.IsZero(remaining) {
			inv.AddonsMeta, remaining = Distribute(inv.AddonsMeta, remaining, payout.ID, direction)
		}
		if !money.IsZero(remaining) && inv.IsFinalSettlement {
			inv.InvoiceContent, remaining = Distribute(inv.InvoiceContent, remaining, payout.ID, direction)
		}

		applied = money.Round2(amount - remaining)
		s.metrics.ObservePass("payout_invoice", remaining)
		if !money.IsZero(remaining) {
			// Not fatal: persist what was distributed. The shortfall
			// surfaces as a missing amount carried into the next payout.
			s.log.Warn("distribution pass left a remainder",
				zap.String("payout_id", payout.ID.String()),
				zap.String("invoice_id", inv.ID.String()),
				zap.Float64("amount", amount),
				zap.Float64("remainder", remaining))
		}
		if money.IsZero(applied) {
			return nil
		}

		inv.TotalBalanced = money.Round2(inv.TotalBalanced + applied)
		inv.RemainingBalance = money.Round2(inv.InvoiceTotal - inv.TotalBalanced)
		if money.IsZero(inv.RemainingBalance) && inv.Status != invoicedomain.InvoiceStatusCancelled {
			inv.Status = invoicedomain.InvoiceStatusBalanced
		}
		if err := tx.Save(inv).Error; err != nil {
			return fmt.Errorf("persist invoice balancing: %w", err)
		}

		invID := inv.ID
		payout.Meta = append(payout.Meta, payoutdomain.MetaEntry{
			Type:              payoutdomain.MetaTypeLandlordInvoice,
			Amount:            money.Round2(-applied),
			LandlordInvoiceID: &invID,
		})
		if payout.Status == payoutdomain.PayoutStatusEstimated {
			payout.Amount = payout.Meta.Sum()
			if money.IsZero(payout.Amount) && len(payout.Meta) > 0 {
				payout.Status = payoutdomain.PayoutStatusCompleted
			}
		} else if payout.Status == payoutdomain.PayoutStatusCompleted && money.IsZero(payout.MissingAmount()) {
			payout.PaymentStatus = payoutdomain.PaymentStatusBalanced
		}
		if err := tx.Save(payout).Error; err != nil {
			return fmt.Errorf("persist payout meta: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

func (s *Service) landlordInvoices(ctx context.Context, contractID snowflake.ID) ([]*invoicedomain.Invoice, error) {
	invoices, err := s.invoicerepo.Find(ctx, &invoicedomain.Invoice{ContractID: contractID})
	if err != nil {
		return nil, fmt.Errorf("load landlord invoices: %w", err)
	}
	landlord := invoices[:0]
	for _, inv := range invoices {
		if inv.IsLandlord() {
			landlord = append(landlord, inv)
		}
	}
	return landlord, nil
}

func (s *Service) invoiceCorrectionIndex(ctx context.Context, contractID snowflake.ID) (CorrectionIndex, error) {
	corrections, err := s.correctionrepo.Find(ctx, &correctiondomain.Correction{ContractID: contractID})
	if err != nil {
		return nil, fmt.Errorf("load corrections: %w", err)
	}
	index := make(CorrectionIndex)
	for _, c := range corrections {
		if c.InvoiceID != nil {
			index[*c.InvoiceID] = true
		}
	}
	return index, nil
}

func (s *Service) payoutCorrectionIndex(ctx context.Context, contractID snowflake.ID) (CorrectionIndex, error) {
	corrections, err := s.correctionrepo.Find(ctx, &correctiondomain.Correction{ContractID: contractID})
	if err != nil {
		return nil, fmt.Errorf("load corrections: %w", err)
	}
	index := make(CorrectionIndex)
	for _, c := range corrections {
		if c.PayoutID != nil {
			index[*c.PayoutID] = true
		}
	}
	return index, nil
}
