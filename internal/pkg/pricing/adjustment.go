package pricing

import (
	"fmt"
	"math"
	"strings"
)

// Adjustment types supported by the bulk editor.
const (
	AdjustPercentage = "percentage"
	AdjustFixed      = "fixed"
	AdjustAdd        = "add"
	AdjustSubtract   = "subtract"
)

// Price bounds every computed price is clamped to before submission.
const (
	MinPrice = 0.01
	MaxPrice = 99999.0
)

// Adjustment is one price adjustment rule applied to every selected variant.
type Adjustment struct {
	Type  string  `json:"type" validate:"required,oneof=percentage fixed add subtract"`
	Value float64 `json:"value" validate:"required"`
}

// Validate rejects out-of-range values per adjustment type before any
// external call is made.
func (a Adjustment) Validate() error {
	switch strings.ToLower(strings.TrimSpace(a.Type)) {
	case AdjustPercentage:
		if a.Value <= -100 || a.Value > 1000 {
			return fmt.Errorf("percentage value must be between -100 and 1000, got %v", a.Value)
		}
	case AdjustFixed:
		if a.Value < MinPrice || a.Value > MaxPrice {
			return fmt.Errorf("fixed price must be between %v and %v, got %v", MinPrice, MaxPrice, a.Value)
		}
	case AdjustAdd, AdjustSubtract:
		if a.Value <= 0 || a.Value > MaxPrice {
			return fmt.Errorf("%s value must be between 0 and %v, got %v", a.Type, MaxPrice, a.Value)
		}
	default:
		return fmt.Errorf("unknown adjustment type %q", a.Type)
	}
	return nil
}

// Apply computes the new price for one variant. Subtractions floor at
// MinPrice instead of going negative; every result is clamped to
// [MinPrice, MaxPrice] and rounded to 2 decimal places.
func (a Adjustment) Apply(current float64) float64 {
	var next float64
	switch strings.ToLower(strings.TrimSpace(a.Type)) {
	case AdjustPercentage:
		next = current * (1 + a.Value/100)
	case AdjustFixed:
		next = a.Value
	case AdjustAdd:
		next = current + a.Value
	case AdjustSubtract:
		next = current - a.Value
	default:
		next = current
	}
	return round2(clamp(next))
}

func clamp(price float64) float64 {
	if price < MinPrice {
		return MinPrice
	}
	if price > MaxPrice {
		return MaxPrice
	}
	return price
}

func round2(price float64) float64 {
	return math.Round(price*100) / 100
}
