package model

import (
	"context"
	"fmt"

	"github.com/opensource-travel/cormorant/internal/domain"
	"github.com/opensource-travel/cormorant/internal/features"
)

// Scorer scores bookings with the loaded bundle. It shares the rule scorer's
// output contract; any failure is returned as an error the detector swallows
// by falling back to the rule table.
type Scorer struct {
	bundle *Bundle
}

// NewScorer wraps a loaded bundle. bundle may be nil, in which case every
// Score call reports ErrModelUnavailable.
func NewScorer(bundle *Bundle) *Scorer {
	return &Scorer{bundle: bundle}
}

// Available reports whether a bundle is loaded.
func (s *Scorer) Available() bool {
	return s != nil && s.bundle != nil
}

// Score vectorizes the derived features in the bundle's declared order,
// scales, runs the forward pass, and treats the sigmoid output directly as
// the fraud probability. No rule blending happens here; indicators come from
// a deterministic explanation pass over the derived values.
func (s *Scorer) Score(ctx context.Context, d *domain.DerivedFeatures) (*domain.RiskResult, error) {
	if !s.Available() {
		return nil, domain.ErrModelUnavailable
	}

	vec, err := features.Vector(d, s.bundle.Order())
	if err != nil {
		return nil, &domain.InferenceError{Stage: "vectorize", Err: err}
	}

	scaled, err := s.bundle.Transform(vec)
	if err != nil {
		return nil, &domain.InferenceError{Stage: "scale", Err: err}
	}

	p, err := s.bundle.Predict(scaled)
	if err != nil {
		return nil, &domain.InferenceError{Stage: "predict", Err: err}
	}

	// Sigmoid output is already in (0,1); the clamp guards exported models
	// with a non-sigmoid head slipping through.
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}

	return &domain.RiskResult{
		FraudProbability: p,
		IsFraud:          p > 0.5,
		RiskLevel:        domain.ClassifyRisk(p),
		Indicators:       Explain(d),
		RuleBased:        false,
		RulesProbability: nil,
		MLProbability:    &p,
	}, nil
}

// Explain generates human-readable indicators for a model prediction. The
// model itself is a black box; this pass reads the derived feature values and
// flags the same signals a reviewer would look for. It mirrors, but is not
// identical to, the rule table: it works off the continuous ratios.
func Explain(d *domain.DerivedFeatures) []string {
	var indicators []string

	if d.MultipleBookingsSameDay > 1 {
		indicators = append(indicators,
			fmt.Sprintf("User has made multiple bookings (%d) on the same day", int(d.MultipleBookingsSameDay)))
	}

	if d.CancellationRatio > 0.5 {
		indicators = append(indicators,
			fmt.Sprintf("High cancellation ratio (%.2f)", d.CancellationRatio))
	}

	if d.VeryShortLead == 1 {
		indicators = append(indicators, "Very short lead time (less than 2 days)")
	} else if d.LeadTime > 365 {
		indicators = append(indicators, "Unusually long lead time (over 1 year)")
	}

	if d.Adults == 0 && d.Children > 0 {
		indicators = append(indicators, "Booking with zero adults")
	}

	if d.Children > d.Adults*2 && d.Children > 1 {
		indicators = append(indicators,
			fmt.Sprintf("Unusual ratio of children (%d) to adults (%d)", int(d.Children), int(d.Adults)))
	}

	if d.SuspiciousPrice == 1 {
		indicators = append(indicators,
			fmt.Sprintf("Unusually low price per person ($%.2f)", d.PricePerPerson))
	}

	if d.PreviousCancellations > 2 {
		indicators = append(indicators,
			fmt.Sprintf("User has %d previous cancellations", int(d.PreviousCancellations)))
	}

	if d.PreviousCancellations > 2 && d.VeryShortLead == 1 && d.MultipleBookingsSameDay > 0 {
		indicators = append(indicators,
			"High-risk pattern: Multiple previous cancellations, very short lead time, and multiple bookings")
	}

	return indicators
}
