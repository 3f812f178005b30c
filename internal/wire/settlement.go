package wire

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/marketedge/internal/domain"
)

type settlementEnvelope struct {
	Ticker              string `json:"ticker"`
	SettledAt           string `json:"settled_time"`
	SettlementValue     int    `json:"settlement_value"`
	ActualSettlementTS  string `json:"actual_settlement_time"`
}

// DecodeSettlement parses a raw settlement JSON object. settlement_value
// must be exactly 0 or 1 per the §3 data model.
func DecodeSettlement(raw json.RawMessage) (domain.Settlement, error) {
	var env settlementEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Settlement{}, fmt.Errorf("wire: decode settlement: %w", err)
	}
	if env.SettlementValue != 0 && env.SettlementValue != 1 {
		return domain.Settlement{}, &domain.ValidationError{Field: "settlement_value", Message: fmt.Sprintf("ticker %s: must be 0 or 1, got %d", env.Ticker, env.SettlementValue)}
	}
	settledAt, err := ParseTimestamp(env.SettledAt)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("wire: settlement %s settled_time: %w", env.Ticker, err)
	}
	actualTS, err := ParseTimestamp(env.ActualSettlementTS)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("wire: settlement %s actual_settlement_time: %w", env.Ticker, err)
	}
	return domain.Settlement{
		Ticker:           env.Ticker,
		SettledAt:        settledAt,
		SettlementValue:  env.SettlementValue,
		ActualSettlement: actualTS,
	}, nil
}
