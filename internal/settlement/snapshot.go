// Package settlement decides whether a closed lease's final settlement can
// be marked completed, by running an ordered list of completion checks over
// the lease's corrections, invoices, payouts, and refund payments.
package settlement

import (
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
)

// Snapshot is everything the checks need about one contract, loaded once
// per evaluation so every check sees the same state.
type Snapshot struct {
	Contract    *contractdomain.Contract
	Corrections []*correctiondomain.Correction
	Invoices    []*invoicedomain.Invoice
	Payouts     []*payoutdomain.Payout
	Payments    []*paymentdomain.InvoicePayment
}

// RentTotals aggregates the tenant-facing side of the lease.
type RentTotals struct {
	InvoiceTotal float64
	TotalPaid    float64
	Lost         float64
	Credited     float64
}

// Net is what the tenants genuinely owed: invoiced minus written-off plus
// credited back.
func (t RentTotals) Net() float64 {
	return money.Round2(t.InvoiceTotal - t.Lost + t.Credited)
}

func (s *Snapshot) RentTotals() RentTotals {
	var t RentTotals
	for _, inv := range s.Invoices {
		if inv.IsLandlord() {
			continue
		}
		t.InvoiceTotal += inv.InvoiceTotal
		t.TotalPaid += inv.TotalPaid
		t.Lost += inv.LostAmount
		t.Credited += inv.CreditedAmount
	}
	t.InvoiceTotal = money.Round2(t.InvoiceTotal)
	t.TotalPaid = money.Round2(t.TotalPaid)
	t.Lost = money.Round2(t.Lost)
	t.Credited = money.Round2(t.Credited)
	return t
}

// PaidIn sums tenant payments that have not been refunded and are not part
// of the final settlement itself.
func (s *Snapshot) PaidIn() float64 {
	var total float64
	for _, p := range s.Payments {
		if p.Type != paymentdomain.PaymentTypePayment || p.IsFinalSettlement || p.IsRefunded() {
			continue
		}
		total += p.Amount
	}
	return money.Round2(total)
}

// LastQualifyingPayment returns the most recent refundable tenant payment,
// nil when none exists.
func (s *Snapshot) LastQualifyingPayment() *paymentdomain.InvoicePayment {
	var last *paymentdomain.InvoicePayment
	for _, p := range s.Payments {
		if p.Type != paymentdomain.PaymentTypePayment || p.IsFinalSettlement || p.IsRefunded() {
			continue
		}
		if last == nil {
			last = p
			continue
		}
		switch {
		case p.PaymentDate == nil:
		case last.PaymentDate == nil, p.PaymentDate.After(*last.PaymentDate):
			last = p
		}
	}
	return last
}
