package balancing

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestDistributeFillsInOrder(t *testing.T) {
	node := newNode(t)
	payoutID := node.Generate()

	obligations := invoicedomain.ObligationList{
		{Label: "commission", Total: 100},
		{Label: "addon", Total: 50},
	}

	updated, remainder := Distribute(obligations, 120, payoutID, DirectionForward)

	assert.Equal(t, 0.0, remainder)
	assert.Equal(t, 100.0, updated[0].TotalBalanced)
	assert.Equal(t, 20.0, updated[1].TotalBalanced)
	assert.Equal(t, []invoicedomain.PayoutContribution{{PayoutID: payoutID, Amount: 100}}, updated[0].Payouts)
	assert.Equal(t, []invoicedomain.PayoutContribution{{PayoutID: payoutID, Amount: 20}}, updated[1].Payouts)
}

func TestDistributeReturnsRemainderWhenUndersized(t *testing.T) {
	node := newNode(t)

	obligations := invoicedomain.ObligationList{{Total: 30}}
	_, remainder := Distribute(obligations, 100, node.Generate(), DirectionForward)

	assert.Equal(t, 70.0, remainder)
}

func TestDistributeIncrementsSamePayoutContribution(t *testing.T) {
	node := newNode(t)
	payoutID := node.Generate()

	obligations := invoicedomain.ObligationList{{Total: 100}}
	obligations, _ = Distribute(obligations, 40, payoutID, DirectionForward)
	obligations, _ = Distribute(obligations, 40, payoutID, DirectionForward)

	require.Len(t, obligations[0].Payouts, 1)
	assert.Equal(t, 80.0, obligations[0].Payouts[0].Amount)
	assert.Equal(t, []snowflake.ID{payoutID}, obligations[0].PayoutsIDs)
	assert.Equal(t, 80.0, obligations[0].TotalBalanced)
}

func TestDistributeSkipsAdjustedContribution(t *testing.T) {
	node := newNode(t)
	payoutID := node.Generate()

	obligations := invoicedomain.ObligationList{{
		Total:         100,
		TotalBalanced: 40,
		Payouts:       []invoicedomain.PayoutContribution{{PayoutID: payoutID, Amount: 40, IsAdjustedBalance: true}},
		PayoutsIDs:    []snowflake.ID{payoutID},
	}}

	obligations, remainder := Distribute(obligations, 30, payoutID, DirectionForward)

	assert.Equal(t, 0.0, remainder)
	require.Len(t, obligations[0].Payouts, 2)
	assert.Equal(t, 40.0, obligations[0].Payouts[0].Amount)
	assert.Equal(t, 30.0, obligations[0].Payouts[1].Amount)
	assert.Equal(t, []snowflake.ID{payoutID}, obligations[0].PayoutsIDs)
}

func TestDistributeSkipsFullEntriesWithoutModification(t *testing.T) {
	node := newNode(t)
	earlier := node.Generate()

	obligations := invoicedomain.ObligationList{
		{
			Total:         50,
			TotalBalanced: 50,
			Payouts:       []invoicedomain.PayoutContribution{{PayoutID: earlier, Amount: 50}},
			PayoutsIDs:    []snowflake.ID{earlier},
		},
		{Total: 25},
	}

	obligations, remainder := Distribute(obligations, 25, node.Generate(), DirectionForward)

	assert.Equal(t, 0.0, remainder)
	require.Len(t, obligations[0].Payouts, 1)
	assert.Equal(t, 25.0, obligations[1].TotalBalanced)
}

func TestDistributeReverseDirection(t *testing.T) {
	node := newNode(t)
	payoutID := node.Generate()

	obligations := invoicedomain.ObligationList{{Total: -80}}
	obligations, remainder := Distribute(obligations, -80, payoutID, DirectionReverse)

	assert.Equal(t, 0.0, remainder)
	assert.Equal(t, -80.0, obligations[0].TotalBalanced)
	assert.Equal(t, -80.0, obligations[0].Payouts[0].Amount)
}

func TestDistributeConservation(t *testing.T) {
	node := newNode(t)

	obligations := invoicedomain.ObligationList{
		{Total: 33.33},
		{Total: 66.67},
		{Total: 10.01},
	}

	amounts := []float64{10.11, 25.55, 0.01, 44.44, 29.89}
	for _, amount := range amounts {
		obligations, _ = Distribute(obligations, amount, node.Generate(), DirectionForward)
	}

	for _, entry := range obligations {
		var sum float64
		for _, c := range entry.Payouts {
			sum += c.Amount
		}
		assert.Equal(t, money.Round2(sum), entry.TotalBalanced)
		assert.LessOrEqual(t, entry.TotalBalanced, entry.Total+money.Epsilon)
	}
}
