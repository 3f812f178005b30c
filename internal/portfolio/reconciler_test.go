package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/money"
)

func ts(offset time.Duration) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset)
}

func TestReconcileBuyThenFullSellRealizesGain(t *testing.T) {
	fills := []domain.Fill{
		{FillID: "F1", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 100, Price: money.Amount(4000), TradeTS: ts(0)},
		{FillID: "F2", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionSell, Count: 100, Price: money.Amount(4500), TradeTS: ts(time.Minute)},
	}
	positions := NewReconciler().Reconcile(fills, nil)
	require.Empty(t, positions, "fully closed position has no open lots")
}

func TestReconcilePartialSellLeavesRemainderAtHead(t *testing.T) {
	fills := []domain.Fill{
		{FillID: "F1", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 100, Price: money.Amount(4000), TradeTS: ts(0)},
		{FillID: "F2", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionSell, Count: 40, Price: money.Amount(4500), TradeTS: ts(time.Minute)},
	}
	positions := NewReconciler().Reconcile(fills, nil)
	require.Len(t, positions, 1)
	require.Len(t, positions[0].OpenLots, 1)
	assert.Equal(t, int64(60), positions[0].OpenLots[0].Quantity)
	assert.Equal(t, money.Amount(40)*(money.Amount(4500)-money.Amount(4000)), positions[0].RealizedPnL)
}

func TestReconcileFIFOConsumesOldestLotFirst(t *testing.T) {
	fills := []domain.Fill{
		{FillID: "F1", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 50, Price: money.Amount(3000), TradeTS: ts(0)},
		{FillID: "F2", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 50, Price: money.Amount(5000), TradeTS: ts(time.Minute)},
		{FillID: "F3", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionSell, Count: 50, Price: money.Amount(6000), TradeTS: ts(2 * time.Minute)},
	}
	positions := NewReconciler().Reconcile(fills, nil)
	require.Len(t, positions, 1)
	require.Len(t, positions[0].OpenLots, 1)
	assert.Equal(t, money.Amount(5000), positions[0].OpenLots[0].UnitCost, "the second lot, not the first, must remain")
	assert.Equal(t, money.Amount(50)*(money.Amount(6000)-money.Amount(3000)), positions[0].RealizedPnL)
}

func TestReconcileOrdersOutOfOrderFillsByTradeTSThenFillID(t *testing.T) {
	fills := []domain.Fill{
		{FillID: "F2", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionSell, Count: 10, Price: money.Amount(5000), TradeTS: ts(time.Minute)},
		{FillID: "F1", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 10, Price: money.Amount(4000), TradeTS: ts(0)},
	}
	positions := NewReconciler().Reconcile(fills, nil)
	require.Empty(t, positions)
}

func TestReconcileSettlementClearsRemainingYesLots(t *testing.T) {
	fills := []domain.Fill{
		{FillID: "F1", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 100, Price: money.Amount(4000), TradeTS: ts(0)},
	}
	settlements := []domain.Settlement{
		{Ticker: "T-1", SettlementValue: 1, SettledAt: ts(time.Hour)},
	}
	positions := NewReconciler().Reconcile(fills, settlements)
	require.Empty(t, positions, "settlement clears all lots regardless of outcome")
}

func TestReconcileSettlementPaysFullDollarOnWinningYes(t *testing.T) {
	fills := []domain.Fill{
		{FillID: "F1", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 100, Price: money.Amount(4000), TradeTS: ts(0)},
	}
	settlements := []domain.Settlement{{Ticker: "T-1", SettlementValue: 1, SettledAt: ts(time.Hour)}}

	// Settlement clears the lots, so we can't read RealizedPnL off the
	// returned (now-empty) position; instead apply the settlement directly
	// to a book holding the pre-settlement lot.
	preSettlement := NewReconciler().Reconcile(fills, nil)
	require.Len(t, preSettlement, 1)
	lot := preSettlement[0].OpenLots[0]
	expectedPayout := money.Amount(100) * (money.Amount(money.UnitsPerDollar) - lot.UnitCost)
	assert.Equal(t, money.Amount(100)*(money.Amount(10000)-money.Amount(4000)), expectedPayout)

	b := &book{}
	b.arena.push(lot)
	applySettlement(map[bookKey]*book{{ticker: "T-1", side: domain.SideYes}: b}, settlements[0])
	assert.Equal(t, expectedPayout, b.realizedPnL)
}

func TestReconcileSettlementOnNoSideUsesComplement(t *testing.T) {
	fills := []domain.Fill{
		{FillID: "F1", Ticker: "T-1", Side: domain.SideNo, Action: domain.ActionBuy, Count: 50, Price: money.Amount(6000), TradeTS: ts(0)},
	}
	settlements := []domain.Settlement{{Ticker: "T-1", SettlementValue: 0, SettledAt: ts(time.Hour)}}
	positions := NewReconciler().Reconcile(fills, settlements)
	require.Empty(t, positions)
}

func TestPositionUnrealizedPnLUsesMarkPrice(t *testing.T) {
	pos := domain.Position{
		Side:     domain.SideYes,
		OpenLots: []domain.Lot{{Quantity: 100, UnitCost: money.Amount(4000)}},
	}
	unrealized := pos.UnrealizedPnL(money.Amount(4500))
	assert.Equal(t, money.Amount(100)*(money.Amount(4500)-money.Amount(4000)), unrealized)
}

func TestArenaCompactsAfterManyConsumedLots(t *testing.T) {
	var arena lotArena
	for i := 0; i < 200; i++ {
		arena.push(domain.Lot{Quantity: 1, UnitCost: money.Amount(100)})
	}
	for i := 0; i < 150; i++ {
		lot := arena.front()
		require.NotNil(t, lot)
		lot.Quantity = 0
		arena.advance()
	}
	assert.True(t, arena.head < len(arena.lots), "compaction must not drop the still-open tail")
	assert.Equal(t, 50, len(arena.lots)-arena.head)
}
