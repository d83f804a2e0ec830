// Package features normalizes raw booking input into the canonical feature
// set consumed by both scorers.
package features

import (
	"fmt"
	"math"

	"github.com/opensource-travel/cormorant/internal/domain"
)

// Order is the versioned feature-ordering contract shared between the
// preprocessor and the model bundle. The preprocessor always emits vectors in
// the order declared here; a bundle trained with a different ordering ships
// its own Order and the preprocessor honors it. Feature alignment is the
// single most fragile invariant in the pipeline: a mismatched order produces
// silently wrong scores, not an error.
type Order struct {
	Version string   `json:"version"`
	Names   []string `json:"names"`
}

// Canonical feature names.
const (
	FeatAdults                  = "no_of_adults"
	FeatChildren                = "no_of_children"
	FeatLeadTime                = "lead_time"
	FeatPreviousCancellations   = "no_of_previous_cancellations"
	FeatPreviousBookingsKept    = "no_of_previous_bookings_not_canceled"
	FeatRepeatedGuest           = "repeated_guest"
	FeatAvgPricePerRoom         = "avg_price_per_room"
	FeatSpecialRequests         = "no_of_special_requests"
	FeatCancellationRatio       = "cancellation_ratio"
	FeatAdultChildRatio         = "adult_child_ratio"
	FeatVeryShortLead           = "very_short_lead"
	FeatSuspiciousPrice         = "suspicious_price"
	FeatMultipleBookingsSameDay = "multiple_bookings_same_day"
)

// DefaultOrder returns the ordering the shipped model was trained with.
func DefaultOrder() Order {
	return Order{
		Version: "1",
		Names: []string{
			FeatAdults,
			FeatChildren,
			FeatLeadTime,
			FeatPreviousCancellations,
			FeatPreviousBookingsKept,
			FeatRepeatedGuest,
			FeatAvgPricePerRoom,
			FeatSpecialRequests,
			FeatCancellationRatio,
			FeatAdultChildRatio,
			FeatVeryShortLead,
			FeatSuspiciousPrice,
			FeatMultipleBookingsSameDay,
		},
	}
}

// Smoothing constant used in ratio denominators. Part of the scoring
// contract; do not change.
const smoothing = 0.1

// Preprocess validates raw booking input, applies documented defaults, and
// computes the derived features. The returned struct feeds both the rule
// scorer and (via Vector) the learned model.
//
// lead_time and no_of_adults are required; their absence yields a
// ValidationError naming the missing fields.
func Preprocess(raw *domain.BookingFeatures) (*domain.DerivedFeatures, error) {
	if raw == nil {
		return nil, domain.NewValidationError("booking features are required")
	}

	var missing []string
	if raw.LeadTime == nil {
		missing = append(missing, "lead_time")
	}
	if raw.Adults == nil {
		missing = append(missing, "no_of_adults")
	}
	if len(missing) > 0 {
		return nil, domain.NewMissingFieldsError(missing...)
	}

	var repeated float64
	switch raw.RepeatedGuest {
	case "Yes":
		repeated = 1
	case "No", "":
		repeated = 0
	default:
		return nil, domain.NewValidationError(
			fmt.Sprintf("repeated_guest must be \"Yes\" or \"No\", got %q", raw.RepeatedGuest))
	}

	ratio := 1.0
	if raw.BookingToDepartureRatio != nil {
		ratio = *raw.BookingToDepartureRatio
	}

	d := &domain.DerivedFeatures{
		LeadTime:                *raw.LeadTime,
		Adults:                  *raw.Adults,
		Children:                raw.Children,
		PreviousCancellations:   raw.PreviousCancellations,
		PreviousBookingsKept:    raw.PreviousBookingsKept,
		AvgPricePerRoom:         raw.AvgPricePerRoom,
		SpecialRequests:         raw.SpecialRequests,
		BookingChanges:          raw.BookingChanges,
		TotalStay:               raw.WeekendNights + raw.WeekNights,
		RequiredCarParking:      raw.RequiredCarParking,
		RepeatedGuest:           repeated,
		MultipleBookingsSameDay: raw.MultipleBookingsSameDay,
		BookingToDepartureRatio: ratio,
	}

	d.CancellationRatio = d.PreviousCancellations /
		(d.PreviousCancellations + d.PreviousBookingsKept + smoothing)
	d.AdultChildRatio = d.Adults / (d.Children + smoothing)
	if d.LeadTime < 2 {
		d.VeryShortLead = 1
	}
	d.PricePerPerson = d.AvgPricePerRoom / math.Max(d.Adults+d.Children, 1)
	if d.AvgPricePerRoom/(d.Adults+d.Children+smoothing) < 25 {
		d.SuspiciousPrice = 1
	}

	return d, nil
}

// Vector lays the derived features out in the supplied order. Unknown feature
// names are an error: refusing to guess beats feeding the model a misaligned
// vector.
func Vector(d *domain.DerivedFeatures, order Order) ([]float64, error) {
	byName := map[string]float64{
		FeatAdults:                  d.Adults,
		FeatChildren:                d.Children,
		FeatLeadTime:                d.LeadTime,
		FeatPreviousCancellations:   d.PreviousCancellations,
		FeatPreviousBookingsKept:    d.PreviousBookingsKept,
		FeatRepeatedGuest:           d.RepeatedGuest,
		FeatAvgPricePerRoom:         d.AvgPricePerRoom,
		FeatSpecialRequests:         d.SpecialRequests,
		FeatCancellationRatio:       d.CancellationRatio,
		FeatAdultChildRatio:         d.AdultChildRatio,
		FeatVeryShortLead:           d.VeryShortLead,
		FeatSuspiciousPrice:         d.SuspiciousPrice,
		FeatMultipleBookingsSameDay: d.MultipleBookingsSameDay,
	}

	vec := make([]float64, len(order.Names))
	for i, name := range order.Names {
		v, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q in order %s", name, order.Version)
		}
		vec[i] = v
	}
	return vec, nil
}
