// Package cohort compares a user's aggregate booking behavior against fixed
// industry baseline statistics.
package cohort

import (
	"math"

	"github.com/opensource-travel/cormorant/internal/domain"
)

// Industry baseline statistics for reservation platforms. These are fixed
// calibration constants, not configuration.
const (
	baselineLeadTimeDays        = 14.0
	baselineCancellationRatio   = 0.15
	baselineBookingToCancelHrs  = 48.0
	baselineAdults              = 2.5
	baselineChildren            = 0.8
	baselineAdultChildRatio     = 3.1
	multiBookingCancelThreshold = 0.5
)

// Sub-score weights. They sum to 1 so the combined score stays in 0-100.
const (
	weightLeadTime         = 0.3
	weightCancellationRate = 0.3
	weightAdultChildRatio  = 0.2
	weightMultipleBookings = 0.2
)

// Profile is the aggregate view of a user's booking history supplied by the
// caller.
type Profile struct {
	UserID                   string  `json:"userId"`
	CancellationRatio        float64 `json:"cancellationRatio"`
	MultipleBookingsCount    float64 `json:"multipleBookingsCount"`
	MultipleBookingsCanceled float64 `json:"multipleBookingsCanceled"`
}

// CancellationRecord is one historical cancellation.
type CancellationRecord struct {
	// DaysBeforeDeparture is how far ahead of the start date the booking
	// sat when it was cancelled.
	DaysBeforeDeparture float64 `json:"timeBeforeDeparture"`

	// HoursSinceBooking is how long after creation the cancellation came.
	HoursSinceBooking float64 `json:"timeSinceBooking"`

	Adults   float64 `json:"adults"`
	Children float64 `json:"children"`
}

// Compare scores how closely the user's cancellation behavior matches the
// industry baseline, 0-100. A score of zero with NoData set means there was
// no history to compare; callers must not conflate that with a computed low
// similarity.
func Compare(profile *Profile, cancellations []CancellationRecord) (*domain.SimilarityResult, error) {
	if profile == nil || profile.UserID == "" {
		return nil, domain.NewValidationError("user id is required")
	}

	if len(cancellations) == 0 {
		return &domain.SimilarityResult{
			Score:          0,
			NoData:         true,
			Message:        "No cancellation history found",
			Recommendation: "User has no cancellations to analyze",
		}, nil
	}

	var leadSum, cancelHrsSum, adultSum, childSum float64
	for _, c := range cancellations {
		leadSum += c.DaysBeforeDeparture
		cancelHrsSum += c.HoursSinceBooking
		adultSum += c.Adults
		childSum += c.Children
	}
	n := float64(len(cancellations))
	avgLead := leadSum / n
	avgCancelHrs := cancelHrsSum / n
	avgAdults := adultSum / n
	avgChildren := childSum / n

	leadSim := 0.0
	if avgLead > 0 {
		leadSim = symmetricRatio(avgLead, baselineLeadTimeDays)
	}

	// Zero observed cancellation rate is treated as perfectly ordinary.
	cancelSim := 1.0
	if profile.CancellationRatio > 0 {
		cancelSim = symmetricRatio(profile.CancellationRatio, baselineCancellationRatio)
	}

	adultChildRatio := avgAdults / (avgChildren + 0.1)
	adultChildSim := symmetricRatio(adultChildRatio, baselineAdultChildRatio)

	// Multiple bookings carry a discrete penalty: mild for the habit itself,
	// severe when those bookings are mostly cancelled afterwards.
	multiFactor := 1.0
	if profile.MultipleBookingsCount > 1 {
		if profile.MultipleBookingsCanceled/(profile.MultipleBookingsCount+0.1) > multiBookingCancelThreshold {
			multiFactor = 0.2
		} else {
			multiFactor = 0.7
		}
	}

	score := int((leadSim*weightLeadTime +
		cancelSim*weightCancellationRate +
		adultChildSim*weightAdultChildRatio +
		multiFactor*weightMultipleBookings) * 100)

	result := &domain.SimilarityResult{
		Score:        score,
		IsSuspicious: score < 50,
		DataPoints: &domain.SimilarityDetails{
			User: domain.CohortStats{
				AvgLeadTime:             round1(avgLead),
				CancellationRatio:       round2(profile.CancellationRatio),
				AvgBookingToCancelHours: round1(avgCancelHrs),
				MultipleBookings:        int(profile.MultipleBookingsCount),
				MultipleBookingsCancel:  int(profile.MultipleBookingsCanceled),
				AvgAdults:               round1(avgAdults),
				AvgChildren:             round1(avgChildren),
				AdultChildRatio:         round1(adultChildRatio),
			},
			Industry: domain.CohortStats{
				AvgLeadTime:             baselineLeadTimeDays,
				CancellationRatio:       baselineCancellationRatio,
				AvgBookingToCancelHours: baselineBookingToCancelHrs,
				AvgAdults:               baselineAdults,
				AvgChildren:             baselineChildren,
				AdultChildRatio:         baselineAdultChildRatio,
			},
			SubScores: map[string]int{
				"leadTime":          int(math.Round(leadSim * 100)),
				"cancellationRatio": int(math.Round(cancelSim * 100)),
				"adultChildRatio":   int(math.Round(adultChildSim * 100)),
				"multipleBookings":  int(math.Round(multiFactor * 100)),
			},
		},
	}

	switch {
	case score > 70:
		result.Message = "User's booking patterns are similar to typical reservation patterns"
		result.Recommendation = "No unusual patterns detected; routine monitoring recommended"
	case score > 50:
		result.Message = "User's booking patterns show some differences from typical reservation patterns"
		result.Recommendation = "Consider monitoring future bookings, but no immediate action needed"
	default:
		result.Message = "User's booking patterns differ significantly from typical reservation patterns"
		if profile.MultipleBookingsCount > 1 {
			result.Message += ", particularly regarding multiple bookings"
			result.Recommendation = "High likelihood of fraudulent behavior. Consider implementing additional verification steps for this user, especially for multiple bookings made in a short period."
		} else {
			result.Recommendation = "Consider implementing additional verification steps for future bookings from this user"
		}
	}

	return result, nil
}

// symmetricRatio returns min(a/b, b/a): 1 at a perfect match, falling toward
// zero as the values diverge in either direction.
func symmetricRatio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return math.Min(a/b, b/a)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
