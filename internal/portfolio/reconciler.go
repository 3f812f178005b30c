package portfolio

import (
	"sort"

	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/money"
)

// bookKey identifies one FIFO queue: a (ticker, side) pair. Buys and sells
// of the opposite side on the same ticker never interact with each other.
type bookKey struct {
	ticker string
	side   domain.Side
}

// book accumulates one (ticker, side)'s lot arena plus its running scalars.
type book struct {
	arena       lotArena
	realizedPnL money.Amount
	feesPaid    money.Amount
}

// Reconciler replays an account's fills into per-ticker positions. It is
// stateless across calls: call Reconcile with the full fill history (and
// any settlements that have since landed) each time a fresh view is needed.
type Reconciler struct{}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile processes fills in trade_ts order (stable tie-break by
// fill_id, enforced by sorting here so callers need not pre-sort),
// applies any settlements, and returns one Position per (ticker, side)
// that still has open lots, per §4.H ("tickers with no open lots are
// omitted from positions"). Unrealized P&L is not computed here: callers
// hold the mark price (live orderbook midpoint or latest snapshot) and
// call Position.UnrealizedPnL(mark) themselves.
func (r *Reconciler) Reconcile(fills []domain.Fill, settlements []domain.Settlement) []domain.Position {
	sorted := make([]domain.Fill, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].TradeTS.Equal(sorted[j].TradeTS) {
			return sorted[i].TradeTS.Before(sorted[j].TradeTS)
		}
		return sorted[i].FillID < sorted[j].FillID
	})

	books := make(map[bookKey]*book)
	getBook := func(k bookKey) *book {
		b, ok := books[k]
		if !ok {
			b = &book{}
			books[k] = b
		}
		return b
	}

	for _, f := range sorted {
		b := getBook(bookKey{ticker: f.Ticker, side: f.Side})
		switch f.Action {
		case domain.ActionBuy:
			b.arena.push(domain.Lot{Quantity: f.Count, UnitCost: f.Price, AcquiredTS: f.TradeTS})
			b.feesPaid += f.Fees
		case domain.ActionSell:
			b.realizedPnL += consumeSell(&b.arena, f.Count, f.Price)
			b.feesPaid += f.Fees
		}
	}

	for _, s := range settlements {
		applySettlement(books, s)
	}

	return buildPositions(books)
}

// consumeSell removes up to sellQty contracts from the front of arena,
// realizing sub_qty*(sell_price-lot_unit_cost) per consumed sub-lot.
func consumeSell(arena *lotArena, sellQty int64, sellPrice money.Amount) money.Amount {
	var realized money.Amount
	remaining := sellQty

	for remaining > 0 {
		lot := arena.front()
		if lot == nil {
			break // selling more than is held; nothing left to consume
		}
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}
		realized += money.Amount(take) * (sellPrice - lot.UnitCost)
		lot.Quantity -= take
		remaining -= take
		if lot.Quantity == 0 {
			arena.advance()
		}
	}
	return realized
}

// applySettlement clears every remaining lot across both sides of a
// settled ticker, realizing qty*(settlement_value-unit_cost) for YES and
// the symmetric formula for NO.
func applySettlement(books map[bookKey]*book, s domain.Settlement) {
	settlementValue := money.Amount(0)
	if s.SettlementValue == 1 {
		settlementValue = money.Amount(money.UnitsPerDollar)
	}

	for _, side := range []domain.Side{domain.SideYes, domain.SideNo} {
		b, ok := books[bookKey{ticker: s.Ticker, side: side}]
		if !ok {
			continue
		}
		payout := settlementValue
		if side == domain.SideNo {
			payout = money.Amount(money.UnitsPerDollar) - settlementValue
		}
		for _, lot := range b.arena.openLots() {
			b.realizedPnL += money.Amount(lot.Quantity) * (payout - lot.UnitCost)
		}
		b.arena = lotArena{}
	}
}

func buildPositions(books map[bookKey]*book) []domain.Position {
	var positions []domain.Position
	for key, b := range books {
		open := b.arena.openLots()
		if len(open) == 0 {
			continue
		}
		positions = append(positions, domain.Position{
			Ticker:      key.ticker,
			Side:        key.side,
			OpenLots:    open,
			RealizedPnL: b.realizedPnL,
			FeesPaid:    b.feesPaid,
		})
	}
	return positions
}
