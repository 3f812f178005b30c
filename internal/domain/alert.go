package domain

// AlertKind identifies what signal an Alert watches.
type AlertKind string

const (
	AlertKindPrice     AlertKind = "price"
	AlertKindVolume    AlertKind = "volume"
	AlertKindSpread    AlertKind = "spread"
	AlertKindSentiment AlertKind = "sentiment"
)

// AlertDirection identifies which side of the threshold triggers an Alert.
type AlertDirection string

const (
	AlertAbove AlertDirection = "above"
	AlertBelow AlertDirection = "below"
)

// Alert is mutated via CLI and consumed by the monitor loop; Threshold's
// unit depends on Kind (cents for price/spread, contracts for volume).
type Alert struct {
	ID        int64
	Kind      AlertKind
	Ticker    string
	Threshold float64
	Direction AlertDirection
	Active    bool
}
