package wire

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/marketedge/internal/domain"
)

type fillEnvelope struct {
	FillID      string  `json:"fill_id"`
	Ticker      string  `json:"ticker"`
	Side        string  `json:"side"`
	Action      string  `json:"action"`
	Count       int64   `json:"count"`
	PriceCents  *int64  `json:"price"`
	PriceDollar *string `json:"price_dollars"`
	FeesCents   *int64  `json:"fees"`
	FeesDollar  *string `json:"fees_dollars"`
	TradeTS     string  `json:"trade_ts"`
}

// DecodeFill parses a raw fill JSON object into an immutable domain.Fill.
func DecodeFill(raw json.RawMessage) (domain.Fill, error) {
	var env fillEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Fill{}, fmt.Errorf("wire: decode fill: %w", err)
	}

	price, err := ParsePrice(PriceField{Cents: env.PriceCents, Dollar: env.PriceDollar})
	if err != nil {
		return domain.Fill{}, fmt.Errorf("wire: fill %s price: %w", env.FillID, err)
	}
	fees, err := ParsePrice(PriceField{Cents: env.FeesCents, Dollar: env.FeesDollar})
	if err != nil {
		return domain.Fill{}, fmt.Errorf("wire: fill %s fees: %w", env.FillID, err)
	}
	tradeTS, err := ParseTimestamp(env.TradeTS)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("wire: fill %s trade_ts: %w", env.FillID, err)
	}

	side := domain.Side(env.Side)
	if side != domain.SideYes && side != domain.SideNo {
		return domain.Fill{}, &domain.ValidationError{Field: "side", Message: fmt.Sprintf("fill %s: unrecognized side %q", env.FillID, env.Side)}
	}
	action := domain.Action(env.Action)
	if action != domain.ActionBuy && action != domain.ActionSell {
		return domain.Fill{}, &domain.ValidationError{Field: "action", Message: fmt.Sprintf("fill %s: unrecognized action %q", env.FillID, env.Action)}
	}

	return domain.Fill{
		FillID:  env.FillID,
		Ticker:  env.Ticker,
		Side:    side,
		Action:  action,
		Count:   env.Count,
		Price:   price,
		Fees:    fees,
		TradeTS: tradeTS,
	}, nil
}

// DecodeFills decodes a JSON array of fill objects.
func DecodeFills(raw json.RawMessage) ([]domain.Fill, error) {
	var rawFills []json.RawMessage
	if err := json.Unmarshal(raw, &rawFills); err != nil {
		return nil, fmt.Errorf("wire: decode fills array: %w", err)
	}
	fills := make([]domain.Fill, 0, len(rawFills))
	for _, rf := range rawFills {
		f, err := DecodeFill(rf)
		if err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, nil
}
