package model

// Tier is the weight-derived retention class of a record. It is never
// stored; it is recomputed from the current weight.
type Tier string

const (
	TierCore     Tier = "core"
	TierArchive  Tier = "archive-tier"
	TierLongTerm Tier = "long-term"
	TierShort    Tier = "short-term"
)

// Tier thresholds on weight. Lower bounds are inclusive.
const (
	coreThreshold     = 9.0
	archiveThreshold  = 7.0
	longTermThreshold = 4.0
)

// TierOf maps a weight to its retention tier.
func TierOf(weight float64) Tier {
	switch {
	case weight >= coreThreshold:
		return TierCore
	case weight >= archiveThreshold:
		return TierArchive
	case weight >= longTermThreshold:
		return TierLongTerm
	default:
		return TierShort
	}
}

// DecayRate returns the per-day multiplicative weight decay for the
// tier. Core memories decay slowest.
func (t Tier) DecayRate() float64 {
	switch t {
	case TierCore:
		return 0.995
	case TierArchive:
		return 0.99
	case TierLongTerm:
		return 0.98
	default:
		return 0.95
	}
}
