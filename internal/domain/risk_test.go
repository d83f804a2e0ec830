package domain

import "testing"

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		p    float64
		want RiskLevel
	}{
		{0.0, RiskLow},
		{0.19, RiskLow},
		{0.2, RiskLowMedium},
		{0.39, RiskLowMedium},
		{0.4, RiskMedium},
		{0.59, RiskMedium},
		{0.6, RiskHigh},
		{0.79, RiskHigh},
		{0.8, RiskVeryHigh},
		{1.0, RiskVeryHigh},
	}
	for _, tt := range tests {
		if got := ClassifyRisk(tt.p); got != tt.want {
			t.Errorf("ClassifyRisk(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}
