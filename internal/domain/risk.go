package domain

import "time"

// RiskLevel is the discretized label derived from a fraud probability.
type RiskLevel string

// Risk levels in ascending order of severity.
const (
	RiskLow       RiskLevel = "Low Risk"
	RiskLowMedium RiskLevel = "Low-Medium Risk"
	RiskMedium    RiskLevel = "Medium Risk"
	RiskHigh      RiskLevel = "High Risk"
	RiskVeryHigh  RiskLevel = "Very High Risk"
)

// ClassifyRisk maps a probability in [0,1] to a risk level. Bands are
// closed-open except the top: <0.2, [0.2,0.4), [0.4,0.6), [0.6,0.8), >=0.8.
// Both scorers route their probability through this single table.
func ClassifyRisk(probability float64) RiskLevel {
	switch {
	case probability < 0.2:
		return RiskLow
	case probability < 0.4:
		return RiskLowMedium
	case probability < 0.6:
		return RiskMedium
	case probability < 0.8:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// RiskResult is the outcome of scoring a single booking. Exactly one of
// RulesProbability and MLProbability is set, matching the RuleBased flag.
type RiskResult struct {
	FraudProbability float64   `json:"fraud_probability"`
	IsFraud          bool      `json:"is_fraud"`
	RiskLevel        RiskLevel `json:"risk_level"`
	Indicators       []string  `json:"indicators"`
	RuleBased        bool      `json:"rule_based"`
	RulesProbability *float64  `json:"rules_probability"`
	MLProbability    *float64  `json:"ml_probability"`
}

// Evaluation wraps a RiskResult with identity and processing metadata.
type Evaluation struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	BookingID string     `json:"bookingId,omitempty"`
	GuestID   string     `json:"guestId,omitempty"`
	Result    RiskResult `json:"result"`
	Timestamp time.Time  `json:"timestamp"`

	Metadata EvaluationMetadata `json:"metadata"`
}

// EvaluationMetadata contains processing information.
type EvaluationMetadata struct {
	TraceID       string `json:"traceId"`
	IngestMs      int64  `json:"ingestMs"`
	ScoreMs       int64  `json:"scoreMs"`
	TotalMs       int64  `json:"totalMs"`
	CustomRules   int    `json:"customRules"`
	EngineVersion string `json:"engineVersion"`
}

// SimilarityResult is the cohort comparator output. A Score of zero together
// with NoData=true means the user had no cancellation history to compare;
// callers must not read it as a computed low similarity.
type SimilarityResult struct {
	Score          int                `json:"similarityScore"`
	IsSuspicious   bool               `json:"isSuspicious"`
	NoData         bool               `json:"noData,omitempty"`
	Message        string             `json:"message"`
	Recommendation string             `json:"recommendation"`
	DataPoints     *SimilarityDetails `json:"dataPoints,omitempty"`
}

// SimilarityDetails breaks the similarity score down for the caller.
type SimilarityDetails struct {
	User      CohortStats    `json:"user"`
	Industry  CohortStats    `json:"industry"`
	SubScores map[string]int `json:"similarityScores"`
}

// CohortStats is an aggregate booking-behavior profile, either observed for a
// user or the fixed industry baseline.
type CohortStats struct {
	AvgLeadTime             float64 `json:"avgLeadTime"`
	CancellationRatio       float64 `json:"cancellationRatio"`
	AvgBookingToCancelHours float64 `json:"avgBookingToCancelTime"`
	MultipleBookings        int     `json:"multipleBookings"`
	MultipleBookingsCancel  int     `json:"multipleBookingsCanceled"`
	AvgAdults               float64 `json:"avgAdults"`
	AvgChildren             float64 `json:"avgChildren"`
	AdultChildRatio         float64 `json:"adultToChildRatio"`
}

// BurstResult is the multi-booking analyzer output. FraudProbability is
// capped below 1.0: the heuristic never claims certainty.
type BurstResult struct {
	RiskLevel        RiskLevel    `json:"riskLevel"`
	FraudProbability float64      `json:"fraudProbability"`
	Message          string       `json:"message"`
	Factors          []string     `json:"factors"`
	Recommendation   string       `json:"recommendation,omitempty"`
	Details          BurstDetails `json:"details"`
}

// BurstDetails carries the intermediate measurements behind a BurstResult.
type BurstDetails struct {
	UniqueResourceCount int     `json:"uniqueResourceCount"`
	AvgHoursBetween     float64 `json:"avgTimeBetweenBookings"`
	BookingCount        int     `json:"bookingCount"`
}
