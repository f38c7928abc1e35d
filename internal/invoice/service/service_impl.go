package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/balancing"
	"github.com/smallbiznis/rentledger/internal/clock"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	"github.com/smallbiznis/rentledger/pkg/db/option"
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
	Payouts   payoutdomain.Service
	Balancing *balancing.Service
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	payouts   payoutdomain.Service
	balancing *balancing.Service

	invoicerepo repository.Repository[invoicedomain.Invoice]
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		payouts:   p.Payouts,
		balancing: p.Balancing,

		invoicerepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	if req.InvoiceType == "" {
		return invoicedomain.Invoice{}, fmt.Errorf("invoice type is required")
	}

	invoice := invoicedomain.Invoice{
		ID:                s.genID.Generate(),
		ContractID:        req.ContractID,
		PartnerID:         req.PartnerID,
		PropertyID:        req.PropertyID,
		AccountID:         req.AccountID,
		InvoiceType:       req.InvoiceType,
		Status:            invoicedomain.InvoiceStatusNew,
		IsFinalSettlement: req.IsFinalSettlement,
		InvoiceTotal:      money.Round2(req.InvoiceTotal),
		PayoutableAmount:  money.Round2(req.PayoutableAmount),
		CommissionsMeta:   req.CommissionsMeta,
		AddonsMeta:        req.AddonsMeta,
		InvoiceContent:    req.InvoiceContent,
		InvoiceStartOn:    req.InvoiceStartOn,
		DueDate:           req.DueDate,
		CreatedAt:         s.clock.Now(),
		UpdatedAt:         s.clock.Now(),
	}
	if invoice.IsLandlord() {
		invoice.RemainingBalance = invoice.InvoiceTotal
	}

	if err := s.invoicerepo.Create(ctx, &invoice); err != nil {
		return invoicedomain.Invoice{}, fmt.Errorf("persist invoice: %w", err)
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("contract_id", invoice.ContractID.String()),
		zap.String("type", string(invoice.InvoiceType)),
		zap.Float64("total", invoice.InvoiceTotal))

	// a new landlord obligation can be absorbed by payouts that are still open
	if invoice.IsLandlord() && !money.IsZero(invoice.RemainingBalance) {
		if err := s.balancing.BalanceInvoice(ctx, invoice.ID, invoice.IsFinalSettlement); err != nil {
			return invoicedomain.Invoice{}, fmt.Errorf("balance new landlord invoice: %w", err)
		}
		return s.GetByID(ctx, invoice.ID)
	}
	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	invoice, err := s.invoicerepo.FindOne(ctx, &invoicedomain.Invoice{ID: id})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice == nil {
		return invoicedomain.Invoice{}, gorm.ErrRecordNotFound
	}
	return *invoice, nil
}

func (s *Service) ListByContract(ctx context.Context, contractID snowflake.ID) ([]invoicedomain.Invoice, error) {
	items, err := s.invoicerepo.Find(ctx, &invoicedomain.Invoice{ContractID: contractID},
		option.WithSortBy(option.QuerySortBy{Default: "created_at"}))
	if err != nil {
		return nil, err
	}
	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		invoices = append(invoices, *item)
	}
	return invoices, nil
}

func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID, amount float64, paidAt time.Time) (invoicedomain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.Status == invoicedomain.InvoiceStatusCancelled {
		return invoicedomain.Invoice{}, fmt.Errorf("invoice %s is cancelled", id)
	}

	invoice.TotalPaid = money.Round2(invoice.TotalPaid + amount)
	invoice.LastPaymentDate = &paidAt
	fullyPaid := invoice.TotalPaid >= money.Round2(invoice.InvoiceTotal-invoice.LostAmount)-money.Epsilon
	if fullyPaid {
		invoice.Status = invoicedomain.InvoiceStatusPaid
	}

	if err := s.invoicerepo.Update(ctx, id.String(), map[string]any{
		"total_paid":        invoice.TotalPaid,
		"last_payment_date": invoice.LastPaymentDate,
		"status":            invoice.Status,
		"updated_at":        s.clock.Now(),
	}); err != nil {
		return invoicedomain.Invoice{}, fmt.Errorf("record payment: %w", err)
	}

	// a fully paid rent invoice releases its payoutable amount
	if fullyPaid && !invoice.IsLandlord() && !money.IsZero(invoice.PayoutableAmount) {
		if _, err := s.payouts.CreateForInvoice(ctx, &invoice); err != nil {
			return invoicedomain.Invoice{}, fmt.Errorf("create payout: %w", err)
		}
	}
	return s.GetByID(ctx, id)
}

func (s *Service) Credit(ctx context.Context, id snowflake.ID, amount float64) (invoicedomain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if amount <= 0 {
		return invoicedomain.Invoice{}, fmt.Errorf("credit amount must be positive")
	}

	invoice.CreditedAmount = money.Round2(invoice.CreditedAmount + amount)
	invoice.Status = invoicedomain.InvoiceStatusCredited
	if err := s.invoicerepo.Update(ctx, id.String(), map[string]any{
		"credited_amount": invoice.CreditedAmount,
		"status":          invoice.Status,
		"updated_at":      s.clock.Now(),
	}); err != nil {
		return invoicedomain.Invoice{}, fmt.Errorf("record credit: %w", err)
	}

	// the credited share claws back through a credit-note payout
	if !invoice.IsLandlord() {
		creditNote := invoice
		creditNote.InvoiceType = invoicedomain.InvoiceTypeCreditNote
		creditNote.PayoutableAmount = money.Round2(-amount)
		if _, err := s.payouts.CreateForInvoice(ctx, &creditNote); err != nil {
			return invoicedomain.Invoice{}, fmt.Errorf("create credit payout: %w", err)
		}
	}
	return s.GetByID(ctx, id)
}

func (s *Service) MarkLost(ctx context.Context, id snowflake.ID, amount float64) (invoicedomain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if amount <= 0 {
		return invoicedomain.Invoice{}, fmt.Errorf("lost amount must be positive")
	}

	invoice.LostAmount = money.Round2(invoice.LostAmount + amount)
	invoice.Status = invoicedomain.InvoiceStatusLost
	if err := s.invoicerepo.Update(ctx, id.String(), map[string]any{
		"lost_amount": invoice.LostAmount,
		"status":      invoice.Status,
		"updated_at":  s.clock.Now(),
	}); err != nil {
		return invoicedomain.Invoice{}, fmt.Errorf("record loss: %w", err)
	}
	return s.GetByID(ctx, id)
}
