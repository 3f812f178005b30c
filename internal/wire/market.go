package wire

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/marketedge/internal/domain"
)

// marketEnvelope is the raw shape of one market object on the wire. Both
// the legacy integer-cent fields and the current dollar-string fields are
// accepted; encoding/json silently drops anything not listed here, which
// satisfies the "unknown fields are ignored" rule without needing a
// DisallowUnknownFields decoder.
type marketEnvelope struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	SeriesTicker   string  `json:"series_ticker"`
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	YesBidCents    *int64  `json:"yes_bid"`
	YesAskCents    *int64  `json:"yes_ask"`
	YesBidDollars  *string `json:"yes_bid_dollars"`
	YesAskDollars  *string `json:"yes_ask_dollars"`
	Volume24h      int64   `json:"volume_24h"`
	OpenInterest   int64   `json:"open_interest"`
	Liquidity      *int64  `json:"liquidity"`
	IsMultivariate bool    `json:"is_multivariate"`
	CreatedTime    string  `json:"created_time"`
	OpenTime       string  `json:"open_time"`
	CloseTime      string  `json:"close_time"`
	SettledTime    string  `json:"settled_time"`
}

// MarketWarning carries a non-fatal normalization event (e.g. a negative
// liquidity sentinel) discovered while decoding a market.
type MarketWarning struct {
	Ticker  string
	Message string
}

// DecodeMarket parses one raw market JSON object into a frozen domain.Market.
func DecodeMarket(raw json.RawMessage) (domain.Market, []MarketWarning, error) {
	var env marketEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Market{}, nil, fmt.Errorf("wire: decode market: %w", err)
	}

	var warnings []MarketWarning

	yesBid, err := ParsePrice(PriceField{Cents: env.YesBidCents, Dollar: env.YesBidDollars})
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("wire: market %s yes_bid: %w", env.Ticker, err)
	}
	yesAsk, err := ParsePrice(PriceField{Cents: env.YesAskCents, Dollar: env.YesAskDollars})
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("wire: market %s yes_ask: %w", env.Ticker, err)
	}

	liquidity, sentinel := NormalizeLiquidity(env.Liquidity)
	if sentinel {
		warnings = append(warnings, MarketWarning{Ticker: env.Ticker, Message: "negative liquidity sentinel normalized to null"})
	}

	createdTime, err := ParseTimestamp(env.CreatedTime)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("wire: market %s created_time: %w", env.Ticker, err)
	}
	openTime, err := ParseTimestamp(env.OpenTime)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("wire: market %s open_time: %w", env.Ticker, err)
	}
	closeTime, err := ParseTimestamp(env.CloseTime)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("wire: market %s close_time: %w", env.Ticker, err)
	}
	settledTime, err := ParseOptionalTimestamp(env.SettledTime)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("wire: market %s settled_time: %w", env.Ticker, err)
	}

	m := domain.Market{
		Ticker:       env.Ticker,
		EventTicker:  env.EventTicker,
		SeriesTicker: env.SeriesTicker,
		Title:        env.Title,
		Status:       domain.MarketStatus(env.Status),
		YesBid:       yesBid,
		YesAsk:       yesAsk,
		Volume24h:    env.Volume24h,
		OpenInterest: env.OpenInterest,
		Liquidity:    liquidity,
		Multivariate: env.IsMultivariate,
		CreatedTime:  createdTime,
		OpenTime:     openTime,
		CloseTime:    closeTime,
		SettledTime:  settledTime,
	}
	return m, warnings, nil
}

// DecodeMarkets decodes a JSON array of market objects, collecting
// per-market warnings rather than failing the whole page on one warning.
func DecodeMarkets(raw json.RawMessage) ([]domain.Market, []MarketWarning, error) {
	var rawMarkets []json.RawMessage
	if err := json.Unmarshal(raw, &rawMarkets); err != nil {
		return nil, nil, fmt.Errorf("wire: decode markets array: %w", err)
	}
	markets := make([]domain.Market, 0, len(rawMarkets))
	var warnings []MarketWarning
	for _, rm := range rawMarkets {
		m, w, err := DecodeMarket(rm)
		if err != nil {
			return nil, nil, err
		}
		markets = append(markets, m)
		warnings = append(warnings, w...)
	}
	return markets, warnings, nil
}
