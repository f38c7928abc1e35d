package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
)

// PayoutContribution records how much of one payout covered an obligation
// entry. IsAdjustedBalance marks a manually fixed contribution that the
// distributor must not increment further.
type PayoutContribution struct {
	PayoutID          snowflake.ID `json:"payoutId"`
	Amount            float64      `json:"amount"`
	IsAdjustedBalance bool         `json:"isAdjustedBalance,omitempty"`
}

// ObligationEntry is one line item (commission, addon, or final-settlement
// invoice-content item) that payout money is matched against.
//
// Invariant, preserved by the balance distributor as the only writer:
// TotalBalanced == sum of Payouts[].Amount, and PayoutsIDs holds each
// contributing payout id exactly once.
type ObligationEntry struct {
	Label         string               `json:"label,omitempty"`
	Total         float64              `json:"total"`
	TotalBalanced float64              `json:"totalBalanced"`
	Payouts       []PayoutContribution `json:"payouts,omitempty"`
	PayoutsIDs    []snowflake.ID       `json:"payoutsIds,omitempty"`
}

// Remaining is the amount of the entry still uncovered by payouts.
func (e *ObligationEntry) Remaining() float64 {
	return money.Round2(e.Total - e.TotalBalanced)
}

// HasPayout reports whether the given payout already contributed to this entry.
func (e *ObligationEntry) HasPayout(payoutID snowflake.ID) bool {
	for _, id := range e.PayoutsIDs {
		if id == payoutID {
			return true
		}
	}
	return false
}

// ObligationList is an ordered list of obligation entries stored as a JSON
// column on the owning invoice. Order is load-bearing: the distributor
// consumes entries front to back.
type ObligationList []ObligationEntry

// TotalBalanced sums the balanced amount across all entries.
func (l ObligationList) TotalBalanced() float64 {
	var total float64
	for i := range l {
		total += l[i].TotalBalanced
	}
	return money.Round2(total)
}

// Remaining sums the uncovered amount across all entries.
func (l ObligationList) Remaining() float64 {
	var total float64
	for i := range l {
		total += l[i].Total - l[i].TotalBalanced
	}
	return money.Round2(total)
}
