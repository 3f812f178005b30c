// Package scanner implements the opportunity-discovery modes of §4.G:
// close-race, high-volume, wide-spread, expiring-soon, movers,
// arbitrage, and new-markets. All modes read from the persisted market
// state the ingestion scheduler maintains; only the movers momentum
// enrichment touches the MarketAPI directly.
package scanner

// QualityProfile selects how aggressively a scan filters out thin
// markets before ranking. spec.md names the three profiles but leaves
// their thresholds unspecified; the values below are this
// implementation's choice (see DESIGN.md).
type QualityProfile string

const (
	ProfileEarly    QualityProfile = "early"
	ProfileStandard QualityProfile = "standard"
	ProfileStrict   QualityProfile = "strict"
)

// ProfileConfig is the concrete threshold set a QualityProfile resolves
// to. Exposed so callers can build a custom profile rather than picking
// one of the three named ones.
type ProfileConfig struct {
	MinVolume24h    int64
	MinOpenInterest int64
	MaxSpreadCents  float64
}

var profileConfigs = map[QualityProfile]ProfileConfig{
	ProfileEarly:    {MinVolume24h: 0, MinOpenInterest: 0, MaxSpreadCents: 25},
	ProfileStandard: {MinVolume24h: 100, MinOpenInterest: 100, MaxSpreadCents: 10},
	ProfileStrict:   {MinVolume24h: 1000, MinOpenInterest: 500, MaxSpreadCents: 5},
}

// Resolve returns the ProfileConfig for a named profile, defaulting to
// ProfileStandard's thresholds for an unrecognized name.
func (p QualityProfile) Resolve() ProfileConfig {
	if cfg, ok := profileConfigs[p]; ok {
		return cfg
	}
	return profileConfigs[ProfileStandard]
}
