package wire

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/marketedge/internal/domain"
)

// orderbookEnvelope mirrors the raw shape: bids-only per side, each level a
// [price, quantity] pair as the API emits them.
type orderbookEnvelope struct {
	Ticker    string    `json:"ticker"`
	Yes       [][2]int64 `json:"yes"`
	No        [][2]int64 `json:"no"`
	Timestamp int64     `json:"ts"`
}

// DecodeOrderbook parses a raw orderbook payload into an immutable
// domain.OrderbookSnapshot. Levels are assumed best-first on the wire, as
// the API documents; this layer does not re-sort them but does reject
// duplicate price levels and non-positive quantities per the §3 invariant.
func DecodeOrderbook(raw json.RawMessage) (domain.OrderbookSnapshot, error) {
	var env orderbookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("wire: decode orderbook: %w", err)
	}

	yesBids, err := decodeLevels(env.Yes)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("wire: orderbook %s yes side: %w", env.Ticker, err)
	}
	noBids, err := decodeLevels(env.No)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("wire: orderbook %s no side: %w", env.Ticker, err)
	}

	return domain.OrderbookSnapshot{
		Ticker:    env.Ticker,
		YesBids:   yesBids,
		NoBids:    noBids,
		Timestamp: env.Timestamp,
	}, nil
}

func decodeLevels(pairs [][2]int64) ([]domain.Level, error) {
	seen := make(map[int64]struct{}, len(pairs))
	levels := make([]domain.Level, 0, len(pairs))
	for _, pair := range pairs {
		price, qty := pair[0], pair[1]
		if qty <= 0 {
			return nil, fmt.Errorf("non-positive quantity %d at price %d", qty, price)
		}
		if _, dup := seen[price]; dup {
			return nil, fmt.Errorf("duplicate price level %d", price)
		}
		seen[price] = struct{}{}
		levels = append(levels, domain.Level{PriceCents: price, Quantity: qty})
	}
	return levels, nil
}
