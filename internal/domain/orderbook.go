package domain

// Level is a single (price, quantity) point in an OrderbookSnapshot. Price is
// in integer cents (the wire protocol's native orderbook unit), quantity is
// the number of contracts resting at that price.
type Level struct {
	PriceCents int64
	Quantity   int64
}

// Side identifies a market side.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Action identifies a trade direction.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// OrderbookSnapshot is an immutable sequence of bid levels per side,
// sorted best-first (highest price first). Opposite-side asks are always
// derived as 100 - bid_price of the other side; the snapshot never stores
// ask levels directly.
type OrderbookSnapshot struct {
	Ticker    string
	YesBids   []Level
	NoBids    []Level
	Timestamp int64 // unix ms, as delivered by the orderbook endpoint
}

// BestYesBid and BestNoBid return the top of book, or (0, false) if the
// side is empty.
func (o OrderbookSnapshot) BestYesBid() (Level, bool) {
	if len(o.YesBids) == 0 {
		return Level{}, false
	}
	return o.YesBids[0], true
}

func (o OrderbookSnapshot) BestNoBid() (Level, bool) {
	if len(o.NoBids) == 0 {
		return Level{}, false
	}
	return o.NoBids[0], true
}

// YesAskFromNoBids derives the YES ask side by inverting NO bids: a NO bid
// at price p corresponds to a YES ask at 100-p. The returned levels are not
// re-sorted; NoBids is assumed best-first (highest NO bid = lowest YES ask).
func (o OrderbookSnapshot) YesAskFromNoBids() []Level {
	asks := make([]Level, len(o.NoBids))
	for i, lvl := range o.NoBids {
		asks[i] = Level{PriceCents: 100 - lvl.PriceCents, Quantity: lvl.Quantity}
	}
	return asks
}

// NoAskFromYesBids is the symmetric derivation for the NO ask side.
func (o OrderbookSnapshot) NoAskFromYesBids() []Level {
	asks := make([]Level, len(o.YesBids))
	for i, lvl := range o.YesBids {
		asks[i] = Level{PriceCents: 100 - lvl.PriceCents, Quantity: lvl.Quantity}
	}
	return asks
}
