package scanner

import "github.com/aristath/marketedge/internal/domain"

// Mode names one of the seven scan strategies.
type Mode string

const (
	ModeCloseRace    Mode = "close-race"
	ModeHighVolume   Mode = "high-volume"
	ModeWideSpread   Mode = "wide-spread"
	ModeExpiringSoon Mode = "expiring-soon"
	ModeMovers       Mode = "movers"
	ModeArbitrage    Mode = "arbitrage"
	ModeNewMarkets   Mode = "new-markets"
)

// Labels applied to unpriced markets surfaced by the new-markets mode
// flag. No other mode ever attaches a label.
const (
	LabelAwaitingPriceDiscovery = "[AWAITING PRICE DISCOVERY]"
	LabelNoQuotes               = "[NO QUOTES]"
)

// Opportunity is one ranked result from a scan. Field density follows
// the same "everything the caller might want to display or sort by in
// one struct" shape as a dashboard opportunity row, trimmed to what this
// system actually computes.
type Opportunity struct {
	Ticker         string
	EventTicker    string
	Title          string
	Mode           Mode
	MidProbability float64
	SpreadCents    float64
	Volume24h      int64
	OpenInterest   int64
	CloseTime      int64
	Score          float64
	Label          string
	PriceChange    float64  // movers only
	MomentumScore  *float64 // movers only, nil if insufficient candlestick history
}

func fromMarket(m domain.Market, mode Mode) Opportunity {
	return Opportunity{
		Ticker:         m.Ticker,
		EventTicker:    m.EventTicker,
		Title:          m.Title,
		Mode:           mode,
		MidProbability: m.Midpoint(),
		SpreadCents:    m.SpreadCents(),
		Volume24h:      m.Volume24h,
		OpenInterest:   m.OpenInterest,
		CloseTime:      m.CloseTime.Unix(),
	}
}

// unpricedLabel distinguishes the two placeholder-quote shapes the
// new-markets mode is allowed to surface.
func unpricedLabel(m domain.Market) string {
	if m.YesBid == 0 && m.YesAsk == 0 {
		return LabelNoQuotes
	}
	if m.Unpriced() {
		return LabelAwaitingPriceDiscovery
	}
	return ""
}

// passesDefaultFilter applies the §4.G default: skip unpriced markets
// and exclude multivariate markets, as every mode except new-markets
// (with its flag) and arbitrage (which deliberately targets whatever
// ticker set it's given) must.
func passesDefaultFilter(m domain.Market) bool {
	return !m.Unpriced() && !m.Multivariate
}

func passesQuality(m domain.Market, cfg ProfileConfig) bool {
	return m.Volume24h >= cfg.MinVolume24h &&
		m.OpenInterest >= cfg.MinOpenInterest &&
		m.SpreadCents() <= cfg.MaxSpreadCents
}
