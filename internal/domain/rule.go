package domain

// RuleConfig defines an operator-supplied supplemental scoring rule.
//
// The built-in rule table is fixed code; RuleConfigs let operators layer
// extra additive signals on top without redeploying. The CEL expression is
// evaluated against the booking's derived feature set and must return a
// bool, int, or double; the numeric result times Weight is added to the
// rule-based fraud score before clamping.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression is the CEL expression to evaluate.
	Expression string `json:"expression"`

	// Indicator is appended to the result indicators when the rule
	// contributes a positive score.
	Indicator string `json:"indicator"`

	// Weight scales the expression result.
	Weight float64 `json:"weight"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleResult is the outcome of a single supplemental rule evaluation.
type RuleResult struct {
	RuleID       string  `json:"ruleId"`
	Score        float64 `json:"score"`        // raw expression result
	Contribution float64 `json:"contribution"` // score * weight
	Triggered    bool    `json:"triggered"`
	Indicator    string  `json:"indicator,omitempty"`
	Err          string  `json:"error,omitempty"`
}
