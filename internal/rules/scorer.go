// Package rules provides the deterministic rule-based fraud scorer plus a
// CEL-based engine for operator-defined supplemental rules.
package rules

import (
	"context"
	"fmt"

	"github.com/opensource-travel/cormorant/internal/domain"
)

// Scorer computes a fraud probability from a booking's derived features using
// a fixed additive rule table. Scoring is pure: identical input yields
// bit-identical output.
type Scorer struct {
	// custom, when non-nil, contributes operator-defined rule scores on
	// top of the built-in table.
	custom *Engine
}

// NewScorer creates a rule-based scorer. engine may be nil.
func NewScorer(engine *Engine) *Scorer {
	return &Scorer{custom: engine}
}

// Score evaluates the built-in rule table (and any loaded supplemental rules)
// against d. Each triggered rule appends exactly one indicator, in evaluation
// order. The returned probability is clamped to [0,1] before the
// genuine-booking override and the risk-level classification run.
func (s *Scorer) Score(ctx context.Context, d *domain.DerivedFeatures) *domain.RiskResult {
	var score float64
	var indicators []string

	// A history of cancellations is suspicious.
	if d.PreviousCancellations > 1 {
		score += minf(d.PreviousCancellations*0.2, 0.5)
		indicators = append(indicators, "High number of previous cancellations")
	}

	// Lead-time extremes in either direction.
	if d.LeadTime < 2 {
		score += 0.3
		indicators = append(indicators, "Very short lead time (less than 2 days)")
	}
	if d.LeadTime > 365 {
		score += 0.3
		indicators = append(indicators, "Unusually long lead time (over 1 year)")
	}

	// Price far below plausible per-person rates.
	if d.PricePerPerson < 20 {
		score += 0.4
		indicators = append(indicators,
			fmt.Sprintf("Unusually low price per person ($%.2f)", d.PricePerPerson))
	}

	// A repeated guest with kept bookings earns trust. No indicator: this is
	// a positive signal. The floor is applied at the final clamp only.
	if d.RepeatedGuest == 1 && d.PreviousBookingsKept > 0 {
		score -= minf(0.3, d.PreviousBookingsKept*0.1)
	}

	if d.Children > d.Adults*2 && d.Children > 1 {
		score += 0.2
		indicators = append(indicators,
			fmt.Sprintf("Unusually high number of children (%d) compared to adults (%d)",
				int(d.Children), int(d.Adults)))
	}

	// One-night stays loaded with requirements.
	if d.TotalStay == 1 && (d.SpecialRequests > 2 || d.RequiredCarParking > 0) {
		score += 0.2
		indicators = append(indicators, "One-night stay with many special requests")
	}

	if d.BookingChanges == 0 && d.LeadTime > 30 {
		score += 0.1
		indicators = append(indicators, "No booking changes despite long lead time")
	}

	// Multiple same-day bookings, escalating with count.
	if d.MultipleBookingsSameDay >= 2 {
		score += 0.3 + 0.1*minf(d.MultipleBookingsSameDay-2, 3)
		indicators = append(indicators,
			fmt.Sprintf("User has made %d bookings on the same day", int(d.MultipleBookingsSameDay)))
		if d.PreviousCancellations > 1 {
			score += 0.2
			indicators = append(indicators,
				"Pattern of multiple bookings combined with history of cancellations")
		}
	}

	// Compound high-risk pattern.
	if d.PreviousCancellations > 2 && d.LeadTime < 3 && d.SpecialRequests == 0 {
		score += 0.3
		indicators = append(indicators,
			"High-risk pattern: Multiple previous cancellations, very short lead time, and no special requests")
	}

	// A reservation needs at least one adult.
	if d.Adults == 0 {
		score += 0.5
		indicators = append(indicators, "Booking with zero adults - invalid reservation")
	}

	if d.BookingToDepartureRatio < 0.1 && d.LeadTime > 14 {
		score += 0.2
		indicators = append(indicators, "Pattern of very quick cancellations after booking")
	}

	// Operator-defined supplemental rules.
	if s.custom != nil {
		for _, r := range s.custom.EvaluateAll(ctx, d) {
			if !r.Triggered {
				continue
			}
			score += r.Contribution
			if r.Indicator != "" {
				indicators = append(indicators, r.Indicator)
			}
		}
	}

	score = clamp01(score)

	// Genuine-booking override: archetypally legitimate bookings are forced
	// into the low band to suppress false positives. Runs after the clamp,
	// before classification.
	if d.LeadTime >= 7 && d.LeadTime <= 120 &&
		d.PreviousCancellations == 0 &&
		d.AvgPricePerRoom >= 80 &&
		d.Adults >= 1 &&
		d.Adults+d.Children <= 5 &&
		d.SpecialRequests > 0 &&
		d.BookingChanges > 0 &&
		d.MultipleBookingsSameDay == 0 {
		score = maxf(score*0.3, 0.05)
	}

	p := score
	return &domain.RiskResult{
		FraudProbability: p,
		IsFraud:          p > 0.5,
		RiskLevel:        domain.ClassifyRisk(p),
		Indicators:       indicators,
		RuleBased:        true,
		RulesProbability: &p,
		MLProbability:    nil,
	}
}

// CustomRuleCount reports how many supplemental rules are loaded.
func (s *Scorer) CustomRuleCount() int {
	if s.custom == nil {
		return 0
	}
	return s.custom.RulesCount()
}

func clamp01(v float64) float64 {
	return maxf(minf(v, 1), 0)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
