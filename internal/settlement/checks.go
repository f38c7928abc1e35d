package settlement

import (
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
)

// Check is one independent completion predicate. Blocked reports true when
// the lease is not yet closeable. Checks run in declaration order and
// short-circuit on the first blocked result.
type Check interface {
	Name() string
	// Applies filters checks that only run once settlement is already underway.
	Applies(status contractdomain.SettlementStatus) bool
	Blocked(s *Snapshot) bool
}

// Checks is the evaluation order. New checks slot in without touching the
// evaluator itself.
func Checks() []Check {
	return []Check{
		openCorrections{},
		unbalancedLandlordInvoices{},
		incompletePayouts{},
		refundDue{},
		residualDue{},
		inProgressLandlordInvoices{},
		inProgressRefunds{},
	}
}

type always struct{}

func (always) Applies(contractdomain.SettlementStatus) bool { return true }

type inProgressOnly struct{}

func (inProgressOnly) Applies(status contractdomain.SettlementStatus) bool {
	return status == contractdomain.SettlementStatusInProgress
}

// openCorrections blocks while any active rent-invoice correction has not
// been consumed into an invoice.
type openCorrections struct{ always }

func (openCorrections) Name() string { return "open_corrections" }

func (openCorrections) Blocked(s *Snapshot) bool {
	for _, c := range s.Corrections {
		if c.Status == correctiondomain.CorrectionStatusActive &&
			c.AddTo == correctiondomain.CorrectionTargetRentInvoice &&
			c.InvoiceID == nil {
			return true
		}
	}
	return false
}

// unbalancedLandlordInvoices blocks on any landlord invoice still carrying
// a remaining balance, unless it is the live final-settlement invoice that
// the closing payout will clear.
type unbalancedLandlordInvoices struct{ always }

func (unbalancedLandlordInvoices) Name() string { return "unbalanced_landlord_invoices" }

func (unbalancedLandlordInvoices) Blocked(s *Snapshot) bool {
	for _, inv := range s.Invoices {
		if !inv.IsLandlord() || money.IsZero(inv.RemainingBalance) {
			continue
		}
		if !inv.IsFinalSettlement || inv.Status == invoicedomain.InvoiceStatusCancelled {
			return true
		}
	}
	return false
}

// incompletePayouts blocks while any payout still represents money in
// flight: a negative amount, a completed payout whose money never settled,
// or an open payout with a nonzero amount.
type incompletePayouts struct{ always }

func (incompletePayouts) Name() string { return "incomplete_payouts" }

func (incompletePayouts) Blocked(s *Snapshot) bool {
	for _, p := range s.Payouts {
		if p.Amount < 0 {
			return true
		}
		if p.Status == payoutdomain.PayoutStatusCompleted &&
			p.PaymentStatus != payoutdomain.PaymentStatusPaid &&
			p.PaymentStatus != payoutdomain.PaymentStatusBalanced &&
			!money.IsZero(p.Amount) {
			return true
		}
		switch p.Status {
		case payoutdomain.PayoutStatusEstimated, payoutdomain.PayoutStatusInProgress, payoutdomain.PayoutStatusFailed:
			if !money.IsZero(p.Amount) {
				return true
			}
		}
	}
	return false
}

// refundDue blocks while tenants have paid more than the lease's net
// invoice total and a refundable payment exists to return it through.
type refundDue struct{ always }

func (refundDue) Name() string { return "refund_due" }

func (refundDue) Blocked(s *Snapshot) bool {
	overpaid := money.Round2(s.PaidIn() - s.RentTotals().Net())
	return overpaid > 0 && !money.IsZero(overpaid) && s.LastQualifyingPayment() != nil
}

// residualDue blocks while the lease's invoice total is not yet covered in
// the direction it was owed.
type residualDue struct{ always }

func (residualDue) Name() string { return "residual_due" }

func (residualDue) Blocked(s *Snapshot) bool {
	totals := s.RentTotals()
	due := money.Round2(totals.InvoiceTotal - totals.TotalPaid)
	return !money.IsZero(due) && money.SameSign(due, totals.InvoiceTotal)
}

// inProgressLandlordInvoices blocks an in-progress settlement while its own
// final-settlement invoice has not been balanced down to zero.
type inProgressLandlordInvoices struct{ inProgressOnly }

func (inProgressLandlordInvoices) Name() string { return "in_progress_landlord_invoices" }

func (inProgressLandlordInvoices) Blocked(s *Snapshot) bool {
	for _, inv := range s.Invoices {
		if inv.IsLandlord() && inv.IsFinalSettlement && !money.IsZero(inv.RemainingBalance) {
			return true
		}
	}
	return false
}

// inProgressRefunds blocks an in-progress settlement while any refund is
// still making its way out, or finished without the money actually leaving.
type inProgressRefunds struct{ inProgressOnly }

func (inProgressRefunds) Name() string { return "in_progress_refunds" }

func (inProgressRefunds) Blocked(s *Snapshot) bool {
	for _, p := range s.Payments {
		if p.Type != paymentdomain.PaymentTypeRefund {
			continue
		}
		switch p.RefundStatus {
		case paymentdomain.RefundStatusCreated,
			paymentdomain.RefundStatusEstimated,
			paymentdomain.RefundStatusInProgress,
			paymentdomain.RefundStatusFailed:
			return true
		case paymentdomain.RefundStatusCompleted:
			if p.RefundPaymentStatus != paymentdomain.RefundPaymentStatusPaid {
				return true
			}
		}
	}
	return false
}
