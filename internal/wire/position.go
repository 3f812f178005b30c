package wire

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/marketedge/internal/domain"
)

// serverPositionEnvelope is the server's own reported-position shape. It is
// intentionally decoded separately from domain.Position (the FIFO-derived
// read model computed by internal/portfolio) since the two are different
// representations of "what the account holds" — one authoritative-but-opaque,
// one locally recomputed from the full fill history.
type serverPositionEnvelope struct {
	Ticker         string  `json:"ticker"`
	Side           string  `json:"side"`
	Quantity       int64   `json:"quantity"`
	AvgPriceCents  *int64  `json:"average_price"`
	AvgPriceDollar *string `json:"average_price_dollars"`
}

// DecodePositions parses the server's /portfolio/positions response into a
// single synthetic open lot per (ticker, side), suitable for cross-checking
// against the locally reconciled domain.Position.
func DecodePositions(raw json.RawMessage) ([]domain.Position, error) {
	var envs []serverPositionEnvelope
	if err := json.Unmarshal(raw, &envs); err != nil {
		return nil, fmt.Errorf("wire: decode positions: %w", err)
	}
	positions := make([]domain.Position, 0, len(envs))
	for _, env := range envs {
		if env.Quantity == 0 {
			continue
		}
		price, err := ParsePrice(PriceField{Cents: env.AvgPriceCents, Dollar: env.AvgPriceDollar})
		if err != nil {
			return nil, fmt.Errorf("wire: position %s: %w", env.Ticker, err)
		}
		side := domain.Side(env.Side)
		positions = append(positions, domain.Position{
			Ticker: env.Ticker,
			Side:   side,
			OpenLots: []domain.Lot{
				{Quantity: env.Quantity, UnitCost: price},
			},
		})
	}
	return positions, nil
}
