package plans

import "strings"

// Plan names form a closed set; anything unknown normalizes to free.
const (
	PlanFree     = "free"
	PlanStandard = "standard"
	PlanPro      = "pro"
)

// PriceTolerance absorbs currency rounding when matching an external
// subscription price back to a catalog tier.
const PriceTolerance = 0.05

// LowUsageThreshold is the lifetime modified-product count below which a
// shop still qualifies for a trial.
const LowUsageThreshold = 10

// Plan is one subscription tier. The catalog is static and read-only at
// runtime; price/limit changes ship as code changes.
type Plan struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Interval    string  `json:"interval"`
	UsageLimit  int     `json:"usage_limit"`
	TrialDays   int     `json:"trial_days"`
}

// IsFree reports whether this is the free tier.
func (p Plan) IsFree() bool {
	return p.Name == PlanFree
}

var catalog = []Plan{
	{
		Name:        PlanFree,
		DisplayName: "Free",
		Price:       0,
		Currency:    "USD",
		Interval:    "EVERY_30_DAYS",
		UsageLimit:  10,
		TrialDays:   0,
	},
	{
		Name:        PlanStandard,
		DisplayName: "Standard",
		Price:       29.99,
		Currency:    "USD",
		Interval:    "EVERY_30_DAYS",
		UsageLimit:  200,
		TrialDays:   7,
	},
	{
		Name:        PlanPro,
		DisplayName: "Pro",
		Price:       79.99,
		Currency:    "USD",
		Interval:    "EVERY_30_DAYS",
		UsageLimit:  2000,
		TrialDays:   7,
	},
}

// All returns the catalog in iteration order (also the tie-break order for
// price matching).
func All() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// ByName looks up a plan by its normalized name.
func ByName(name string) (Plan, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range catalog {
		if p.Name == n {
			return p, true
		}
	}
	return Plan{}, false
}

// Free returns the free tier definition.
func Free() Plan {
	p, _ := ByName(PlanFree)
	return p
}

// MatchByPrice maps an external subscription price back to the nearest
// catalog tier by absolute difference. Amounts further than PriceTolerance
// from every tier do not match. When two tiers are equidistant the first
// one in catalog order wins.
func MatchByPrice(amount float64) (Plan, bool) {
	bestDiff := -1.0
	var best Plan
	for _, p := range catalog {
		diff := amount - p.Price
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = p
		}
	}
	if bestDiff < 0 || bestDiff > PriceTolerance {
		return Plan{}, false
	}
	return best, true
}
