// Package burst analyzes clusters of bookings made by one user in a short
// window for signs of coordinated or automated fraud.
package burst

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/opensource-travel/cormorant/internal/domain"
)

// Booking is one entry in the cluster under analysis.
type Booking struct {
	CreatedAt  time.Time `json:"bookingDate"`
	LeadTime   float64   `json:"leadTime"`
	ResourceID string    `json:"resourceId"`
}

// Input is a cluster of bookings plus the user's overall cancellation ratio.
type Input struct {
	UserID            string    `json:"userId"`
	Bookings          []Booking `json:"bookings"`
	CancellationRatio float64   `json:"cancellationRatio"`
}

const (
	// Heuristic contributions. The sum is capped below certainty.
	rapidFireScore    = 0.3
	quickScore        = 0.2
	identicalScore    = 0.3
	manyResourcesUnit = 0.1
	manyResourcesCap  = 0.4
	cancelHabitScore  = 0.2
	probabilityCap    = 0.95

	defaultGapHours = 24.0
)

// Analyze scores a booking cluster. Fewer than two bookings is not an error:
// it returns a fixed low-risk result so callers can treat single bookings
// uniformly.
func Analyze(input *Input) (*domain.BurstResult, error) {
	if input == nil || input.UserID == "" {
		return nil, domain.NewValidationError("user id is required")
	}

	if len(input.Bookings) < 2 {
		return &domain.BurstResult{
			RiskLevel:        domain.RiskLow,
			FraudProbability: 0.1,
			Message:          "Not enough bookings to analyze multiple booking patterns",
			Factors:          []string{},
		}, nil
	}

	avgGap := averageGapHours(input.Bookings)
	uniqueResources := countUniqueResources(input.Bookings)

	var factors []string
	probability := 0.0

	switch {
	case avgGap < 1:
		factors = append(factors, "Multiple bookings made within a very short time period (less than 1 hour)")
		probability += rapidFireScore
	case avgGap < 4:
		factors = append(factors, fmt.Sprintf("Multiple bookings made within %.1f hours", avgGap))
		probability += quickScore
	}

	// Near-identical short lead times across the cluster point at scripted
	// booking.
	stdev, mean := leadTimeSpread(input.Bookings)
	if stdev < 1 && mean < 7 {
		factors = append(factors, "Multiple bookings with nearly identical short lead times - potential automated fraud")
		probability += identicalScore
	}

	if uniqueResources > 2 {
		factors = append(factors, fmt.Sprintf("Booking %d different resources simultaneously", uniqueResources))
		probability += math.Min(manyResourcesUnit*float64(uniqueResources), manyResourcesCap)
	}

	if input.CancellationRatio > 0.5 && len(input.Bookings) > 2 {
		factors = append(factors, fmt.Sprintf("High cancellation ratio (%.2f) combined with multiple bookings", input.CancellationRatio))
		probability += cancelHabitScore
	}

	probability = math.Min(probability, probabilityCap)
	level := classify(probability)

	recommendation := "Normal multiple booking pattern, no immediate action required"
	if probability > 0.5 {
		recommendation = "Consider requiring additional verification or payment confirmation for these bookings"
	}

	if factors == nil {
		factors = []string{}
	}
	return &domain.BurstResult{
		RiskLevel:        level,
		FraudProbability: math.Round(probability*100) / 100,
		Message:          fmt.Sprintf("Analysis of %d bookings shows %s of fraud", len(input.Bookings), strings.ToLower(string(level))),
		Factors:          factors,
		Recommendation:   recommendation,
		Details: domain.BurstDetails{
			UniqueResourceCount: uniqueResources,
			AvgHoursBetween:     math.Round(avgGap*10) / 10,
			BookingCount:        len(input.Bookings),
		},
	}, nil
}

// classify uses coarser bands than the per-booking scorer. The heuristic sums
// are too lumpy to support a five-way split.
func classify(probability float64) domain.RiskLevel {
	switch {
	case probability > 0.7:
		return domain.RiskVeryHigh
	case probability > 0.5:
		return domain.RiskHigh
	case probability > 0.3:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// averageGapHours sorts the creation times and averages consecutive gaps.
// Bookings with a zero timestamp are skipped; with no usable gaps the default
// is a full day, neutral for every threshold.
func averageGapHours(bookings []Booking) float64 {
	times := make([]time.Time, 0, len(bookings))
	for _, b := range bookings {
		if !b.CreatedAt.IsZero() {
			times = append(times, b.CreatedAt)
		}
	}
	if len(times) < 2 {
		return defaultGapHours
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var sum float64
	for i := 1; i < len(times); i++ {
		sum += times[i].Sub(times[i-1]).Hours()
	}
	return sum / float64(len(times)-1)
}

// countUniqueResources counts distinct resources across the cluster. Bookings
// without a resource id are ignored.
func countUniqueResources(bookings []Booking) int {
	seen := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		if b.ResourceID != "" {
			seen[b.ResourceID] = struct{}{}
		}
	}
	return len(seen)
}

// leadTimeSpread returns the population standard deviation and mean of the
// cluster's lead times.
func leadTimeSpread(bookings []Booking) (stdev, mean float64) {
	var sum float64
	for _, b := range bookings {
		sum += b.LeadTime
	}
	mean = sum / float64(len(bookings))

	var sq float64
	for _, b := range bookings {
		d := b.LeadTime - mean
		sq += d * d
	}
	stdev = math.Sqrt(sq / float64(len(bookings)))
	return stdev, mean
}
