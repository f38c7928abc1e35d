package balancing

import (
	"sort"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/smallbiznis/rentledger/pkg/period"
)

// CorrectionIndex marks which candidates have at least one associated
// correction record; corrected candidates bypass the period filter.
type CorrectionIndex map[snowflake.ID]bool

// SelectUnbalancedInvoices returns the landlord invoices eligible to be
// balanced against a reference period, oldest period first.
//
// The ascending period order is part of this contract, not a storage
// artifact: a partner's arrears are always paid down chronologically.
func SelectUnbalancedInvoices(candidates []*invoicedomain.Invoice, refKey period.Key, corrected CorrectionIndex, adjustAll bool) []*invoicedomain.Invoice {
	selected := make([]*invoicedomain.Invoice, 0, len(candidates))
	for _, inv := range candidates {
		if money.IsZero(inv.RemainingBalance) {
			continue
		}
		if !adjustAll && !corrected[inv.ID] && refKey.Before(inv.PeriodKey()) {
			continue
		}
		selected = append(selected, inv)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].PeriodKey() < selected[j].PeriodKey()
	})
	return selected
}

// SelectEstimatedPayouts returns the payouts still open for balancing
// against a reference period, oldest period first. Only estimated payouts
// qualify; later statuses are already committed to a disbursement run.
func SelectEstimatedPayouts(candidates []*payoutdomain.Payout, refKey period.Key, corrected CorrectionIndex, adjustAll bool) []*payoutdomain.Payout {
	selected := make([]*payoutdomain.Payout, 0, len(candidates))
	for _, p := range candidates {
		if p.Status != payoutdomain.PayoutStatusEstimated {
			continue
		}
		if !adjustAll && !corrected[p.ID] && refKey.Before(p.PeriodKey()) {
			continue
		}
		selected = append(selected, p)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].PeriodKey() < selected[j].PeriodKey()
	})
	return selected
}

// PrepareAmountData resolves how much of the available balanced amount to
// apply against a candidate's remaining balance.
//
// A negative remaining balance (the landlord is owed money back) is always
// cleared in full rather than partially, which is why the remaining
// balance wins whenever it is negative, fully covered, or the caller is
// running a final-settlement adjust-all pass.
func PrepareAmountData(balancedAmount, remainingBalance float64, isAdjustAll bool) float64 {
	if money.Abs(balancedAmount) >= money.Abs(remainingBalance) || remainingBalance < 0 || isAdjustAll {
		return remainingBalance
	}
	return balancedAmount
}
