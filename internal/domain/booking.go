// Package domain holds the core types shared across Cormorant components.
package domain

// BookingFeatures is the raw input for a single fraud-scoring call.
//
// LeadTime and NoOfAdults are required and therefore pointers: absence is
// detectable and rejected at the preprocessing boundary. Every other numeric
// field defaults to zero when omitted, except BookingToDepartureRatio which
// defaults to 1.0. RepeatedGuest carries the upstream "Yes"/"No" convention;
// an empty value means "No".
type BookingFeatures struct {
	LeadTime *float64 `json:"lead_time"`
	Adults   *float64 `json:"no_of_adults"`

	Children                float64  `json:"no_of_children"`
	PreviousCancellations   float64  `json:"no_of_previous_cancellations"`
	PreviousBookingsKept    float64  `json:"no_of_previous_bookings_not_canceled"`
	AvgPricePerRoom         float64  `json:"avg_price_per_room"`
	SpecialRequests         float64  `json:"no_of_special_requests"`
	BookingChanges          float64  `json:"no_of_booking_changes"`
	WeekendNights           float64  `json:"no_of_weekend_nights"`
	WeekNights              float64  `json:"no_of_week_nights"`
	RequiredCarParking      float64  `json:"required_car_parking_space"`
	RepeatedGuest           string   `json:"repeated_guest"`
	MultipleBookingsSameDay float64  `json:"multiple_bookings_same_day"`
	BookingToDepartureRatio *float64 `json:"booking_to_departure_ratio"`
}

// DerivedFeatures is the canonical feature set produced by the preprocessor.
// It carries both the raw values (with defaults applied) and the derived
// ratios consumed by the scorers and the explanation pass.
//
// The +0.1 smoothing constant in the ratio denominators is part of the scoring
// contract: changing it changes every reproduced score.
type DerivedFeatures struct {
	LeadTime                float64
	Adults                  float64
	Children                float64
	PreviousCancellations   float64
	PreviousBookingsKept    float64
	AvgPricePerRoom         float64
	SpecialRequests         float64
	BookingChanges          float64
	TotalStay               float64
	RequiredCarParking      float64
	RepeatedGuest           float64 // 1 when "Yes"
	MultipleBookingsSameDay float64
	BookingToDepartureRatio float64

	CancellationRatio float64 // cancellations / (cancellations + kept + 0.1)
	AdultChildRatio   float64 // adults / (children + 0.1)
	VeryShortLead     float64 // 1 when lead_time < 2
	SuspiciousPrice   float64 // 1 when price / (adults + children + 0.1) < 25
	PricePerPerson    float64 // price / max(adults + children, 1)
}
