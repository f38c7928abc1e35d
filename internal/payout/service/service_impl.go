package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/balancing"
	"github.com/smallbiznis/rentledger/internal/bankref"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	settingsdomain "github.com/smallbiznis/rentledger/internal/settings/domain"
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
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	Bankref   bankref.Allocator
	Settings  settingsdomain.Provider
	Balancing *balancing.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	bankref bankref.Allocator

	settings  settingsdomain.Provider
	balancing *balancing.Service

	payoutrepo   repository.Repository[payoutdomain.Payout]
	invoicerepo  repository.Repository[invoicedomain.Invoice]
	contractrepo repository.Repository[contractdomain.Contract]
}

func NewService(p ServiceParam) payoutdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payout.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Config,
		bankref: p.Bankref,

		settings:  p.Settings,
		balancing: p.Balancing,

		payoutrepo:   repository.ProvideStore[payoutdomain.Payout](p.DB),
		invoicerepo:  repository.ProvideStore[invoicedomain.Invoice](p.DB),
		contractrepo: repository.ProvideStore[contractdomain.Contract](p.DB),
	}
}

// BuildMeta assembles a new payout's obligation chain from the invoice and
// the contract's prior payout history. Each step appends conditionally:
//
//  1. the invoice's payoutable amount,
//  2. the last failed positive payout (money that never reached the landlord),
//  3. the last negative payout (money the landlord still owes back),
//  4. the most recent payout's missing amount, compensating rounding or
//     under-application drift so it is carried forward rather than lost.
func BuildMeta(invoice *invoicedomain.Invoice, history []*payoutdomain.Payout) payoutdomain.BuildResult {
	meta := payoutdomain.MetaList{}

	baseType := payoutdomain.MetaTypeRentInvoice
	if invoice.IsCredit() {
		baseType = payoutdomain.MetaTypeCreditRentInvoice
	}
	invoiceID := invoice.ID
	meta = append(meta, payoutdomain.MetaEntry{
		Type:      baseType,
		Amount:    invoice.PayoutableAmount,
		InvoiceID: &invoiceID,
	})

	// history ordered newest first
	sorted := make([]*payoutdomain.Payout, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SerialID > sorted[j].SerialID
	})

	carried := map[snowflake.ID]bool{}

	if failed := firstMatch(sorted, func(p *payoutdomain.Payout) bool {
		return p.Status == payoutdomain.PayoutStatusFailed && p.Amount > 0
	}); failed != nil {
		failedID := failed.ID
		carried[failedID] = true
		meta = append(meta, payoutdomain.MetaEntry{
			Type:     payoutdomain.MetaTypeUnpaidEarlierPayout,
			Amount:   failed.Amount,
			PayoutID: &failedID,
		})
	}

	if negative := firstMatch(sorted, func(p *payoutdomain.Payout) bool {
		return p.Amount < 0
	}); negative != nil {
		negativeID := negative.ID
		carried[negativeID] = true
		meta = append(meta, payoutdomain.MetaEntry{
			Type:     payoutdomain.MetaTypeUnpaidExpenses,
			Amount:   negative.Amount,
			PayoutID: &negativeID,
		})
	}

	// A payout whose full amount was already carried forward above must not
	// also contribute its shortfall, or the carry would cancel itself out.
	if len(sorted) > 0 && !carried[sorted[0].ID] {
		last := sorted[0]
		if missing := last.MissingAmount(); !money.IsZero(missing) {
			entryType := payoutdomain.MetaTypeUnpaidEarlierPayout
			if missing > 0 {
				entryType = payoutdomain.MetaTypeUnpaidExpenses
			}
			lastID := last.ID
			meta = append(meta, payoutdomain.MetaEntry{
				Type:     entryType,
				Amount:   money.Round2(-missing),
				PayoutID: &lastID,
			})
		}
	}

	return payoutdomain.BuildResult{Meta: meta, TotalAmount: meta.Sum()}
}

func firstMatch(payouts []*payoutdomain.Payout, match func(*payoutdomain.Payout) bool) *payoutdomain.Payout {
	for _, p := range payouts {
		if match(p) {
			return p
		}
	}
	return nil
}

func (s *Service) CreateForInvoice(ctx context.Context, invoice *invoicedomain.Invoice) (payoutdomain.Payout, error) {
	if invoice == nil {
		return payoutdomain.Payout{}, fmt.Errorf("invoice is required")
	}

	history, err := s.payoutrepo.Find(ctx, &payoutdomain.Payout{
		ContractID: invoice.ContractID,
		PartnerID:  invoice.PartnerID,
		PropertyID: invoice.PropertyID,
	})
	if err != nil {
		return payoutdomain.Payout{}, fmt.Errorf("load payout history: %w", err)
	}

	result := BuildMeta(invoice, history)

	status := payoutdomain.PayoutStatusEstimated
	if money.IsZero(result.TotalAmount) {
		status = payoutdomain.PayoutStatusCompleted
	}

	reference, err := s.bankref.Allocate(ctx, invoice.PartnerID)
	if err != nil {
		return payoutdomain.Payout{}, fmt.Errorf("allocate bank reference: %w", err)
	}

	payoutDate, err := s.resolvePayoutDate(ctx, invoice.ContractID, invoice.PartnerID)
	if err != nil {
		return payoutdomain.Payout{}, err
	}

	payout := payoutdomain.Payout{
		ID:                s.genID.Generate(),
		ContractID:        invoice.ContractID,
		PartnerID:         invoice.PartnerID,
		PropertyID:        invoice.PropertyID,
		AccountID:         invoice.AccountID,
		SerialID:          nextSerial(history),
		Amount:            result.TotalAmount,
		Status:            status,
		PaymentStatus:     payoutdomain.PaymentStatusPending,
		IsFinalSettlement: invoice.IsFinalSettlement,
		BankReferenceID:   reference,
		Meta:              result.Meta,
		PayoutDate:        &payoutDate,
		CreatedAt:         s.clock.Now(),
		UpdatedAt:         s.clock.Now(),
	}

	if invoice.IsFinalSettlement {
		if err := s.stampInvoicePaid(ctx, &payout); err != nil {
			return payoutdomain.Payout{}, err
		}
	}

	if err := s.payoutrepo.Create(ctx, &payout); err != nil {
		return payoutdomain.Payout{}, fmt.Errorf("persist payout: %w", err)
	}

	s.log.Info("payout created",
		zap.String("payout_id", payout.ID.String()),
		zap.String("contract_id", payout.ContractID.String()),
		zap.Float64("amount", payout.Amount),
		zap.String("status", string(payout.Status)))
	return payout, nil
}

func (s *Service) CreateClosingPayout(ctx context.Context, contractID snowflake.ID) (payoutdomain.Payout, error) {
	contract, err := s.contractrepo.FindOne(ctx, &contractdomain.Contract{ID: contractID})
	if err != nil {
		return payoutdomain.Payout{}, fmt.Errorf("load contract: %w", err)
	}
	if contract == nil {
		return payoutdomain.Payout{}, fmt.Errorf("contract %s not found", contractID)
	}

	history, err := s.payoutrepo.Find(ctx, &payoutdomain.Payout{ContractID: contractID})
	if err != nil {
		return payoutdomain.Payout{}, fmt.Errorf("load payout history: %w", err)
	}

	reference, err := s.bankref.Allocate(ctx, contract.PartnerID)
	if err != nil {
		return payoutdomain.Payout{}, fmt.Errorf("allocate bank reference: %w", err)
	}

	now := s.clock.Now()
	payout := payoutdomain.Payout{
		ID:                s.genID.Generate(),
		ContractID:        contract.ID,
		PartnerID:         contract.PartnerID,
		PropertyID:        contract.PropertyID,
		AccountID:         contract.AccountID,
		SerialID:          nextSerial(history),
		Amount:            0,
		Status:            payoutdomain.PayoutStatusCompleted,
		PaymentStatus:     payoutdomain.PaymentStatusBalanced,
		IsFinalSettlement: true,
		BankReferenceID:   reference,
		Meta:              payoutdomain.MetaList{},
		PayoutDate:        &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.stampInvoicePaid(ctx, &payout); err != nil {
		return payoutdomain.Payout{}, err
	}
	if err := s.payoutrepo.Create(ctx, &payout); err != nil {
		return payoutdomain.Payout{}, fmt.Errorf("persist closing payout: %w", err)
	}
	return payout, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (payoutdomain.Payout, error) {
	payout, err := s.payoutrepo.FindOne(ctx, &payoutdomain.Payout{ID: id})
	if err != nil {
		return payoutdomain.Payout{}, err
	}
	if payout == nil {
		return payoutdomain.Payout{}, gorm.ErrRecordNotFound
	}
	return *payout, nil
}

func (s *Service) ListByContract(ctx context.Context, contractID snowflake.ID) ([]payoutdomain.Payout, error) {
	items, err := s.payoutrepo.Find(ctx, &payoutdomain.Payout{ContractID: contractID})
	if err != nil {
		return nil, err
	}
	payouts := make([]payoutdomain.Payout, 0, len(items))
	for _, item := range items {
		payouts = append(payouts, *item)
	}
	sort.SliceStable(payouts, func(i, j int) bool { return payouts[i].SerialID < payouts[j].SerialID })
	return payouts, nil
}

func (s *Service) HandlePaid(ctx context.Context, id snowflake.ID) error {
	payout, err := s.payoutrepo.FindOne(ctx, &payoutdomain.Payout{ID: id})
	if err != nil {
		return err
	}
	if payout == nil {
		return fmt.Errorf("payout %s not found", id)
	}

	if err := s.payoutrepo.Update(ctx, id.String(), map[string]any{
		"status":         payoutdomain.PayoutStatusCompleted,
		"payment_status": payoutdomain.PaymentStatusPaid,
		"updated_at":     s.clock.Now(),
	}); err != nil {
		return fmt.Errorf("mark payout paid: %w", err)
	}

	return s.balancing.BalancePayout(ctx, id, payout.IsFinalSettlement)
}

func (s *Service) HandleFailed(ctx context.Context, id snowflake.ID) error {
	payout, err := s.payoutrepo.FindOne(ctx, &payoutdomain.Payout{ID: id})
	if err != nil {
		return err
	}
	if payout == nil {
		return fmt.Errorf("payout %s not found", id)
	}

	if err := s.payoutrepo.Update(ctx, id.String(), map[string]any{
		"status":     payoutdomain.PayoutStatusFailed,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return fmt.Errorf("mark payout failed: %w", err)
	}

	s.log.Warn("payout failed; amount will be carried into the next payout",
		zap.String("payout_id", id.String()),
		zap.Float64("amount", payout.Amount))
	return nil
}

func nextSerial(history []*payoutdomain.Payout) int64 {
	var max int64
	for _, p := range history {
		if p.SerialID > max {
			max = p.SerialID
		}
	}
	return max + 1
}

// stampInvoicePaid marks a final-settlement payout when every rent invoice
// of the contract is already paid or credited.
func (s *Service) stampInvoicePaid(ctx context.Context, payout *payoutdomain.Payout) error {
	invoices, err := s.invoicerepo.Find(ctx, &invoicedomain.Invoice{ContractID: payout.ContractID})
	if err != nil {
		return fmt.Errorf("load rent invoices: %w", err)
	}

	var lastPayment *time.Time
	for _, inv := range invoices {
		if inv.IsLandlord() {
			continue
		}
		if inv.Status != invoicedomain.InvoiceStatusPaid && inv.Status != invoicedomain.InvoiceStatusCredited {
			return nil
		}
		if inv.LastPaymentDate != nil && (lastPayment == nil || inv.LastPaymentDate.After(*lastPayment)) {
			lastPayment = inv.LastPaymentDate
		}
	}
	if lastPayment == nil {
		return nil
	}

	payout.InvoicePaid = true
	payout.InvoicePaidOn = lastPayment
	return nil
}

// resolvePayoutDate picks the disbursement day: contract override first,
// then the partner's standard payout date, then the application default.
func (s *Service) resolvePayoutDate(ctx context.Context, contractID, partnerID snowflake.ID) (time.Time, error) {
	day := s.cfg.DefaultPayoutDay

	settings, err := s.settings.GetByPartner(ctx, partnerID)
	if err != nil {
		return time.Time{}, fmt.Errorf("load partner settings: %w", err)
	}
	if settings.StandardPayoutDate > 0 {
		day = settings.StandardPayoutDate
	}

	contract, err := s.contractrepo.FindOne(ctx, &contractdomain.Contract{ID: contractID})
	if err != nil {
		return time.Time{}, fmt.Errorf("load contract: %w", err)
	}
	if contract != nil && contract.MonthlyPayoutDate != nil && *contract.MonthlyPayoutDate > 0 {
		day = *contract.MonthlyPayoutDate
	}

	loc := time.UTC
	if settings.Timezone != "" {
		if parsed, err := time.LoadLocation(settings.Timezone); err == nil {
			loc = parsed
		}
	}

	now := s.clock.Now().In(loc)
	payoutDate := time.Date(now.Year(), now.Month(), day, 0, 0, 0, 0, loc)
	if !payoutDate.After(now) {
		payoutDate = payoutDate.AddDate(0, 1, 0)
	}
	return payoutDate, nil
}
