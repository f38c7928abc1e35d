package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	"github.com/smallbiznis/rentledger/pkg/db/option"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Invoices invoicedomain.Service
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	invoices invoicedomain.Service

	paymentrepo repository.Repository[paymentdomain.InvoicePayment]
}

func NewService(p ServiceParam) paymentdomain.Service {
	return &Service{
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		invoices: p.Invoices,

		paymentrepo: repository.ProvideStore[paymentdomain.InvoicePayment](p.DB),
	}
}

func (s *Service) RecordPayment(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.InvoicePayment, error) {
	if len(req.Invoices) == 0 {
		return paymentdomain.InvoicePayment{}, fmt.Errorf("payment needs at least one invoice")
	}

	var total float64
	for _, item := range req.Invoices {
		total += item.Amount
	}
	total = money.Round2(total)
	if money.IsZero(total) {
		return paymentdomain.InvoicePayment{}, fmt.Errorf("payment amount must be nonzero")
	}

	// Every referenced invoice must resolve before the payment row is
	// committed, so a mistyped id cannot leave an orphaned payment.
	for _, item := range req.Invoices {
		if _, err := s.invoices.GetByID(ctx, item.InvoiceID); err != nil {
			return paymentdomain.InvoicePayment{}, fmt.Errorf("payment references invoice %s: %w", item.InvoiceID, err)
		}
	}

	paidAt := req.PaymentDate
	if paidAt.IsZero() {
		paidAt = s.clock.Now()
	}

	payment := paymentdomain.InvoicePayment{
		ID:          s.genID.Generate(),
		ContractID:  req.ContractID,
		PartnerID:   req.PartnerID,
		PropertyID:  req.PropertyID,
		TenantID:    req.TenantID,
		Type:        paymentdomain.PaymentTypePayment,
		Amount:      total,
		Invoices:    req.Invoices,
		PaymentDate: &paidAt,
		CreatedAt:   s.clock.Now(),
		UpdatedAt:   s.clock.Now(),
	}
	if err := s.paymentrepo.Create(ctx, &payment); err != nil {
		return paymentdomain.InvoicePayment{}, fmt.Errorf("persist payment: %w", err)
	}

	// MarkPaid opens its own balancing transactions, so the fan-out cannot
	// run inside one. The payment row is already committed: a failure
	// mid-loop leaves earlier invoices applied, and the logged invoice id
	// is the replay point for the remaining ones.
	for _, item := range req.Invoices {
		if _, err := s.invoices.MarkPaid(ctx, item.InvoiceID, item.Amount, paidAt); err != nil {
			s.log.Error("payment application failed mid fan-out",
				zap.String("payment_id", payment.ID.String()),
				zap.String("invoice_id", item.InvoiceID.String()),
				zap.Error(err))
			return paymentdomain.InvoicePayment{}, fmt.Errorf("apply payment to invoice %s: %w", item.InvoiceID, err)
		}
	}

	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("contract_id", payment.ContractID.String()),
		zap.Float64("amount", payment.Amount))
	return payment, nil
}

func (s *Service) CreateRefund(ctx context.Context, req paymentdomain.CreateRefundRequest) (paymentdomain.InvoicePayment, error) {
	if req.Amount <= 0 {
		return paymentdomain.InvoicePayment{}, fmt.Errorf("refund amount must be positive")
	}

	refund := paymentdomain.InvoicePayment{
		ID:                s.genID.Generate(),
		ContractID:        req.ContractID,
		PartnerID:         req.PartnerID,
		PropertyID:        req.PropertyID,
		TenantID:          req.TenantID,
		Type:              paymentdomain.PaymentTypeRefund,
		Amount:            money.Round2(req.Amount),
		IsFinalSettlement: req.IsFinalSettlement,
		RefundStatus:      paymentdomain.RefundStatusCreated,
		CreatedAt:         s.clock.Now(),
		UpdatedAt:         s.clock.Now(),
	}
	if err := s.paymentrepo.Create(ctx, &refund); err != nil {
		return paymentdomain.InvoicePayment{}, fmt.Errorf("persist refund: %w", err)
	}
	return refund, nil
}

func (s *Service) MarkRefundCompleted(ctx context.Context, id snowflake.ID) (paymentdomain.InvoicePayment, error) {
	if err := s.updateRefund(ctx, id, map[string]any{
		"refund_status":         paymentdomain.RefundStatusCompleted,
		"refund_payment_status": paymentdomain.RefundPaymentStatusPaid,
		"updated_at":            s.clock.Now(),
	}); err != nil {
		return paymentdomain.InvoicePayment{}, err
	}
	return s.get(ctx, id)
}

func (s *Service) MarkRefundFailed(ctx context.Context, id snowflake.ID) (paymentdomain.InvoicePayment, error) {
	if err := s.updateRefund(ctx, id, map[string]any{
		"refund_status": paymentdomain.RefundStatusFailed,
		"updated_at":    s.clock.Now(),
	}); err != nil {
		return paymentdomain.InvoicePayment{}, err
	}
	return s.get(ctx, id)
}

func (s *Service) ListByContract(ctx context.Context, contractID snowflake.ID) ([]paymentdomain.InvoicePayment, error) {
	items, err := s.paymentrepo.Find(ctx, &paymentdomain.InvoicePayment{ContractID: contractID},
		option.WithSortBy(option.QuerySortBy{Default: "created_at"}))
	if err != nil {
		return nil, err
	}
	payments := make([]paymentdomain.InvoicePayment, 0, len(items))
	for _, item := range items {
		payments = append(payments, *item)
	}
	return payments, nil
}

func (s *Service) updateRefund(ctx context.Context, id snowflake.ID, updates map[string]any) error {
	refund, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if refund.Type != paymentdomain.PaymentTypeRefund {
		return fmt.Errorf("payment %s is not a refund", id)
	}
	if err := s.paymentrepo.Update(ctx, id.String(), updates); err != nil {
		return fmt.Errorf("update refund: %w", err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, id snowflake.ID) (paymentdomain.InvoicePayment, error) {
	payment, err := s.paymentrepo.FindOne(ctx, &paymentdomain.InvoicePayment{ID: id})
	if err != nil {
		return paymentdomain.InvoicePayment{}, err
	}
	if payment == nil {
		return paymentdomain.InvoicePayment{}, gorm.ErrRecordNotFound
	}
	return *payment, nil
}
