// Package balancing applies payout money against a landlord invoice's
// outstanding obligation entries. The distributor is the only writer of
// obligation balancing state; every other component treats the lists as
// read-only.
package balancing

import (
	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
)

// Direction orients a distribution pass. Positive distributes money onto
// obligations; negative claws previously applied money back.
type Direction int

const (
	DirectionForward Direction = 1
	DirectionReverse Direction = -1
)

// DirectionFor picks the pass direction from the sign of the amount.
func DirectionFor(amount float64) Direction {
	if amount < 0 {
		return DirectionReverse
	}
	return DirectionForward
}

// Distribute walks obligations in stored order and applies the signed
// amount against each entry's remaining capacity, recording a per-payout
// contribution as it goes. A contribution already present for the same
// payout is incremented rather than duplicated, unless it was manually
// adjusted. Entries with no capacity are skipped untouched.
//
// The returned remainder is the ledger-signed amount that found no
// capacity. It should be zero when the obligations were sized correctly;
// a nonzero remainder is the caller's to report and carry forward.
func Distribute(obligations invoicedomain.ObligationList, signedAmount float64, payoutID snowflake.ID, direction Direction) (invoicedomain.ObligationList, float64) {
	sign := float64(direction)
	remaining := money.Round2(signedAmount * sign)

	for i := range obligations {
		if remaining <= 0 || money.IsZero(remaining) {
			break
		}

		entry := &obligations[i]
		capacity := money.Round2((entry.Total - entry.TotalBalanced) * sign)
		if capacity <= 0 || money.IsZero(capacity) {
			continue
		}

		apply := money.Round2(money.Min(remaining, capacity))
		ledgerApply := money.Round2(apply * sign)

		if !applyContribution(entry, payoutID, ledgerApply) {
			continue
		}

		entry.TotalBalanced = money.Round2(entry.TotalBalanced + ledgerApply)
		remaining = money.Round2(remaining - apply)
	}

	return obligations, money.Round2(remaining * sign)
}

// applyContribution records a payout's share on the entry, incrementing an
// existing non-adjusted contribution from the same payout instead of
// appending a duplicate.
func applyContribution(entry *invoicedomain.ObligationEntry, payoutID snowflake.ID, amount float64) bool {
	if money.IsZero(amount) {
		return false
	}

	for i := range entry.Payouts {
		c := &entry.Payouts[i]
		if c.PayoutID == payoutID && !c.IsAdjustedBalance {
			c.Amount = money.Round2(c.Amount + amount)
			recordPayoutID(entry, payoutID)
			return true
		}
	}

	entry.Payouts = append(entry.Payouts, invoicedomain.PayoutContribution{
		PayoutID: payoutID,
		Amount:   amount,
	})
	recordPayoutID(entry, payoutID)
	return true
}

func recordPayoutID(entry *invoicedomain.ObligationEntry, payoutID snowflake.ID) {
	if !entry.HasPayout(payoutID) {
		entry.PayoutsIDs = append(entry.PayoutsIDs, payoutID)
	}
}
