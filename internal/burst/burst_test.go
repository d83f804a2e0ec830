package burst

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/opensource-travel/cormorant/internal/domain"
)

var base = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func TestAnalyzeValidation(t *testing.T) {
	if _, err := Analyze(nil); !domain.IsValidation(err) {
		t.Errorf("Analyze(nil) error = %v, want validation error", err)
	}
	if _, err := Analyze(&Input{}); !domain.IsValidation(err) {
		t.Errorf("Analyze with empty user id error = %v, want validation error", err)
	}
}

func TestAnalyzeTooFewBookings(t *testing.T) {
	for _, bookings := range [][]Booking{nil, {{CreatedAt: base, LeadTime: 3}}} {
		res, err := Analyze(&Input{UserID: "u1", Bookings: bookings})
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if res.RiskLevel != domain.RiskLow || res.FraudProbability != 0.1 {
			t.Errorf("got level %q probability %v, want Low Risk 0.1", res.RiskLevel, res.FraudProbability)
		}
		if res.Message != "Not enough bookings to analyze multiple booking patterns" {
			t.Errorf("Message = %q", res.Message)
		}
		if res.Factors == nil || len(res.Factors) != 0 {
			t.Errorf("Factors = %v, want empty non-nil", res.Factors)
		}
	}
}

func TestAnalyzeRapidFireCluster(t *testing.T) {
	// Four bookings minutes apart with identical short lead times across
	// four distinct resources, made by a habitual canceller.
	input := &Input{
		UserID:            "u1",
		CancellationRatio: 0.8,
		Bookings: []Booking{
			{CreatedAt: base, LeadTime: 2, ResourceID: "r1"},
			{CreatedAt: base.Add(10 * time.Minute), LeadTime: 2, ResourceID: "r2"},
			{CreatedAt: base.Add(20 * time.Minute), LeadTime: 2, ResourceID: "r3"},
			{CreatedAt: base.Add(30 * time.Minute), LeadTime: 2, ResourceID: "r4"},
		},
	}

	res, err := Analyze(input)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// 0.3 rapid fire + 0.3 identical leads + 0.4 resources + 0.2 habit,
	// capped at 0.95.
	if res.FraudProbability != 0.95 {
		t.Errorf("FraudProbability = %v, want 0.95", res.FraudProbability)
	}
	if res.RiskLevel != domain.RiskVeryHigh {
		t.Errorf("RiskLevel = %q, want %q", res.RiskLevel, domain.RiskVeryHigh)
	}
	if res.Message != "Analysis of 4 bookings shows very high risk of fraud" {
		t.Errorf("Message = %q", res.Message)
	}
	if !strings.Contains(res.Recommendation, "additional verification") {
		t.Errorf("Recommendation = %q", res.Recommendation)
	}

	wantFactors := []string{
		"Multiple bookings made within a very short time period (less than 1 hour)",
		"Multiple bookings with nearly identical short lead times - potential automated fraud",
		"Booking 4 different resources simultaneously",
		"High cancellation ratio (0.80) combined with multiple bookings",
	}
	if len(res.Factors) != len(wantFactors) {
		t.Fatalf("Factors = %v, want %v", res.Factors, wantFactors)
	}
	for i, want := range wantFactors {
		if res.Factors[i] != want {
			t.Errorf("Factors[%d] = %q, want %q", i, res.Factors[i], want)
		}
	}

	if res.Details.UniqueResourceCount != 4 || res.Details.BookingCount != 4 {
		t.Errorf("Details = %+v", res.Details)
	}
	if math.Abs(res.Details.AvgHoursBetween-0.2) > 1e-9 {
		t.Errorf("AvgHoursBetween = %v, want 0.2", res.Details.AvgHoursBetween)
	}
}

func TestAnalyzeQuickGapBand(t *testing.T) {
	input := &Input{
		UserID: "u1",
		Bookings: []Booking{
			{CreatedAt: base, LeadTime: 30, ResourceID: "r1"},
			{CreatedAt: base.Add(2 * time.Hour), LeadTime: 60, ResourceID: "r1"},
		},
	}

	res, err := Analyze(input)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if res.FraudProbability != 0.2 {
		t.Errorf("FraudProbability = %v, want 0.2", res.FraudProbability)
	}
	if res.RiskLevel != domain.RiskLow {
		t.Errorf("RiskLevel = %q, want %q", res.RiskLevel, domain.RiskLow)
	}
	if len(res.Factors) != 1 || res.Factors[0] != "Multiple bookings made within 2.0 hours" {
		t.Errorf("Factors = %v", res.Factors)
	}
	if !strings.Contains(res.Recommendation, "no immediate action") {
		t.Errorf("Recommendation = %q", res.Recommendation)
	}
}

func TestAnalyzeSpreadOutCluster(t *testing.T) {
	// Wide gaps and diverse lead times over at most two resources trigger
	// nothing.
	input := &Input{
		UserID: "u1",
		Bookings: []Booking{
			{CreatedAt: base, LeadTime: 10, ResourceID: "r1"},
			{CreatedAt: base.AddDate(0, 0, 2), LeadTime: 45, ResourceID: "r2"},
			{CreatedAt: base.AddDate(0, 0, 5), LeadTime: 90, ResourceID: "r1"},
		},
	}

	res, err := Analyze(input)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if res.FraudProbability != 0 {
		t.Errorf("FraudProbability = %v, want 0", res.FraudProbability)
	}
	if res.RiskLevel != domain.RiskLow {
		t.Errorf("RiskLevel = %q, want %q", res.RiskLevel, domain.RiskLow)
	}
	if len(res.Factors) != 0 {
		t.Errorf("Factors = %v, want none", res.Factors)
	}
	if res.Message != "Analysis of 3 bookings shows low risk of fraud" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestAnalyzeMissingTimestampsUseDefaultGap(t *testing.T) {
	// No usable creation times: the gap defaults to a day, so neither
	// rapid-fire band can fire.
	input := &Input{
		UserID: "u1",
		Bookings: []Booking{
			{LeadTime: 2, ResourceID: "r1"},
			{LeadTime: 2, ResourceID: "r2"},
		},
	}

	res, err := Analyze(input)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Only the identical-lead-time factor fires.
	if res.FraudProbability != 0.3 {
		t.Errorf("FraudProbability = %v, want 0.3", res.FraudProbability)
	}
	if res.Details.AvgHoursBetween != 24 {
		t.Errorf("AvgHoursBetween = %v, want 24", res.Details.AvgHoursBetween)
	}
}

func TestClassifyBands(t *testing.T) {
	tests := []struct {
		p    float64
		want domain.RiskLevel
	}{
		{0.0, domain.RiskLow},
		{0.3, domain.RiskLow},
		{0.31, domain.RiskMedium},
		{0.5, domain.RiskMedium},
		{0.51, domain.RiskHigh},
		{0.7, domain.RiskHigh},
		{0.71, domain.RiskVeryHigh},
		{0.95, domain.RiskVeryHigh},
	}
	for _, tt := range tests {
		if got := classify(tt.p); got != tt.want {
			t.Errorf("classify(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestCountUniqueResources(t *testing.T) {
	bookings := []Booking{
		{ResourceID: "r1"},
		{ResourceID: "r2"},
		{ResourceID: "r1"},
		{ResourceID: ""},
	}
	if got := countUniqueResources(bookings); got != 2 {
		t.Errorf("countUniqueResources = %d, want 2", got)
	}
	if got := countUniqueResources(nil); got != 0 {
		t.Errorf("countUniqueResources(nil) = %d, want 0", got)
	}
}

func TestAnalyzeDuplicateResourcesNotOvercounted(t *testing.T) {
	// Two distinct resources across four bookings stays under the
	// many-resources threshold even though the cluster itself is rapid.
	input := &Input{
		UserID: "u1",
		Bookings: []Booking{
			{CreatedAt: base, LeadTime: 2, ResourceID: "r1"},
			{CreatedAt: base.Add(10 * time.Minute), LeadTime: 2, ResourceID: "r2"},
			{CreatedAt: base.Add(20 * time.Minute), LeadTime: 2, ResourceID: "r1"},
			{CreatedAt: base.Add(30 * time.Minute), LeadTime: 2, ResourceID: "r2"},
		},
	}

	res, err := Analyze(input)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// 0.3 rapid fire + 0.3 identical leads, no resource factor.
	if res.FraudProbability != 0.6 {
		t.Errorf("FraudProbability = %v, want 0.6", res.FraudProbability)
	}
	if res.Details.UniqueResourceCount != 2 {
		t.Errorf("UniqueResourceCount = %d, want 2", res.Details.UniqueResourceCount)
	}
	for _, f := range res.Factors {
		if strings.Contains(f, "different resources") {
			t.Errorf("unexpected resource factor %q", f)
		}
	}
}

func TestLeadTimeSpread(t *testing.T) {
	bookings := []Booking{{LeadTime: 2}, {LeadTime: 4}, {LeadTime: 6}}
	stdev, mean := leadTimeSpread(bookings)
	if mean != 4 {
		t.Errorf("mean = %v, want 4", mean)
	}
	want := math.Sqrt(8.0 / 3.0)
	if math.Abs(stdev-want) > 1e-12 {
		t.Errorf("stdev = %v, want %v", stdev, want)
	}
}
