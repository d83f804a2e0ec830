// Package detector orchestrates a scoring call: preprocessing, scorer
// selection with silent model fallback, risk classification, and evaluation
// metadata.
package detector

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-travel/cormorant/internal/domain"
	"github.com/opensource-travel/cormorant/internal/features"
	"github.com/opensource-travel/cormorant/internal/model"
	"github.com/opensource-travel/cormorant/internal/rules"
)

// EngineVersion is stamped into evaluation metadata.
const EngineVersion = "cormorant-1.0"

// Detector scores bookings. It prefers the learned model when one is loaded
// and the caller did not opt out, and falls back to the rule table on any
// model failure. Scoring is side-effect free; callers own caching,
// publishing, and notification.
type Detector struct {
	rules *rules.Scorer
	model *model.Scorer
}

// New creates a detector. modelScorer may be nil for rule-only deployments.
func New(ruleScorer *rules.Scorer, modelScorer *model.Scorer) *Detector {
	return &Detector{
		rules: ruleScorer,
		model: modelScorer,
	}
}

// ModelAvailable reports whether the learned-model path can be used.
func (d *Detector) ModelAvailable() bool {
	return d.model.Available()
}

// Input is a single scoring request.
type Input struct {
	TenantID  string
	BookingID string
	GuestID   string
	TraceID   string

	Features *domain.BookingFeatures

	// PreferModel selects the learned model when loaded. The rule table
	// is always the fallback.
	PreferModel bool

	// StartTime is when the caller began handling the request; used for
	// total latency metadata. Zero means "now".
	StartTime time.Time
}

// Score evaluates one booking. The only caller-visible failure is a
// ValidationError from preprocessing; model failures degrade silently to the
// rule-based result.
func (d *Detector) Score(ctx context.Context, input *Input) (*domain.Evaluation, error) {
	start := time.Now()
	if input.StartTime.IsZero() {
		input.StartTime = start
	}

	derived, err := features.Preprocess(input.Features)
	if err != nil {
		return nil, err
	}

	var result *domain.RiskResult
	if input.PreferModel && d.model.Available() {
		result, err = d.model.Score(ctx, derived)
		if err != nil {
			// Never propagate a model failure: degrade to rules.
			slog.Debug("model scoring failed, falling back to rules",
				"booking_id", input.BookingID,
				"error", err,
			)
			result = nil
		}
	}
	if result == nil {
		result = d.rules.Score(ctx, derived)
	}

	scoreMs := time.Since(start).Milliseconds()

	eval := &domain.Evaluation{
		ID:        uuid.New().String(),
		TenantID:  input.TenantID,
		BookingID: input.BookingID,
		GuestID:   input.GuestID,
		Result:    *result,
		Timestamp: time.Now().UTC(),
		Metadata: domain.EvaluationMetadata{
			TraceID:       input.TraceID,
			ScoreMs:       scoreMs,
			TotalMs:       time.Since(input.StartTime).Milliseconds(),
			CustomRules:   d.rules.CustomRuleCount(),
			EngineVersion: EngineVersion,
		},
	}

	return eval, nil
}

// ShouldAlert reports whether an evaluation should be pushed to the alert
// topic.
func ShouldAlert(eval *domain.Evaluation) bool {
	return eval.Result.IsFraud
}
