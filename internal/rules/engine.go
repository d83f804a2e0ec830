package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-travel/cormorant/internal/domain"
)

// Engine compiles and evaluates operator-defined CEL rules over a booking's
// derived feature set. Rules are hot-reloadable; evaluation never mutates
// engine state, so concurrent scoring calls share one engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a supplemental rule engine. The CEL environment exposes
// the raw booking fields plus the derived ratios, so expressions can reach
// the same signals the built-in table uses.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("lead_time", cel.DoubleType),
		cel.Variable("adults", cel.DoubleType),
		cel.Variable("children", cel.DoubleType),
		cel.Variable("previous_cancellations", cel.DoubleType),
		cel.Variable("previous_bookings_kept", cel.DoubleType),
		cel.Variable("avg_price_per_room", cel.DoubleType),
		cel.Variable("special_requests", cel.DoubleType),
		cel.Variable("booking_changes", cel.DoubleType),
		cel.Variable("total_stay", cel.DoubleType),
		cel.Variable("required_car_parking", cel.DoubleType),
		cel.Variable("repeated_guest", cel.BoolType),
		cel.Variable("multiple_bookings_same_day", cel.DoubleType),
		cel.Variable("booking_to_departure_ratio", cel.DoubleType),
		cel.Variable("cancellation_ratio", cel.DoubleType),
		cel.Variable("adult_child_ratio", cel.DoubleType),
		cel.Variable("price_per_person", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// LoadFile reads rule configs from a JSON file and loads them. A missing
// file is not an error: supplemental rules are optional.
func (e *Engine) LoadFile(path string) (int, error) {
	if path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rules file: %w", err)
	}

	var configs []*domain.RuleConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return 0, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	if err := e.ReloadRules(configs); err != nil {
		return 0, err
	}
	return e.RulesCount(), nil
}

// EvaluateAll evaluates all loaded rules against the derived features.
// Results come back in no particular order between rules, but a rule's
// evaluation error is recorded on its result rather than failing the call:
// a broken supplemental rule must never block scoring.
func (e *Engine) EvaluateAll(ctx context.Context, d *domain.DerivedFeatures) []domain.RuleResult {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"lead_time":                  d.LeadTime,
		"adults":                     d.Adults,
		"children":                   d.Children,
		"previous_cancellations":     d.PreviousCancellations,
		"previous_bookings_kept":     d.PreviousBookingsKept,
		"avg_price_per_room":         d.AvgPricePerRoom,
		"special_requests":           d.SpecialRequests,
		"booking_changes":            d.BookingChanges,
		"total_stay":                 d.TotalStay,
		"required_car_parking":       d.RequiredCarParking,
		"repeated_guest":             d.RepeatedGuest == 1,
		"multiple_bookings_same_day": d.MultipleBookingsSameDay,
		"booking_to_departure_ratio": d.BookingToDepartureRatio,
		"cancellation_ratio":         d.CancellationRatio,
		"adult_child_ratio":          d.AdultChildRatio,
		"price_per_person":           d.PricePerPerson,
	}

	results := make([]domain.RuleResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, e.evaluateRule(rule, activation))
	}

	return results
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any) domain.RuleResult {
	result := domain.RuleResult{
		RuleID:    rule.Config.ID,
		Indicator: rule.Config.Indicator,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Err = err.Error()
		result.Indicator = ""
		return result
	}

	score := toScore(out)
	result.Score = score
	result.Contribution = score * rule.Config.Weight
	result.Triggered = result.Contribution > 0
	if !result.Triggered {
		result.Indicator = ""
	}

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
