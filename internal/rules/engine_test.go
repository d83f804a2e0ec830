package rules

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-travel/cormorant/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestValidateRule(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{"bool expression", "lead_time < 2.0", false},
		{"double expression", "cancellation_ratio * 0.5", false},
		{"conditional", "adults == 0.0 ? 1.0 : 0.0", false},
		{"repeated guest is bool", "repeated_guest && booking_changes == 0.0", false},
		{"syntax error", "lead_time <", true},
		{"unknown variable", "room_type == 1.0", true},
		{"string result rejected", "'always'", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ValidateRule(&domain.RuleConfig{ID: "r", Expression: tt.expression})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRule(%q) error = %v, wantErr %v", tt.expression, err, tt.wantErr)
			}
		})
	}

	t.Run("nil config", func(t *testing.T) {
		if err := e.ValidateRule(nil); err == nil {
			t.Error("ValidateRule(nil) = nil, want error")
		}
	})
}

func TestLoadAndReloadRules(t *testing.T) {
	e := newTestEngine(t)

	if err := e.LoadRule(&domain.RuleConfig{
		ID:         "r1",
		Expression: "lead_time < 2.0",
		Weight:     0.3,
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule: %v", err)
	}
	if got := e.RulesCount(); got != 1 {
		t.Fatalf("RulesCount = %d, want 1", got)
	}

	// Reload replaces the whole set and skips disabled rules.
	err := e.ReloadRules([]*domain.RuleConfig{
		{ID: "r2", Expression: "adults == 0.0", Weight: 0.5, Enabled: true},
		{ID: "r3", Expression: "children > 4.0", Weight: 0.2, Enabled: false},
	})
	if err != nil {
		t.Fatalf("ReloadRules: %v", err)
	}
	if got := e.RulesCount(); got != 1 {
		t.Errorf("RulesCount after reload = %d, want 1", got)
	}

	loaded := e.GetLoadedRules()
	if len(loaded) != 1 || loaded[0].ID != "r2" {
		t.Errorf("GetLoadedRules = %+v, want only r2", loaded)
	}
}

func TestLoadFile(t *testing.T) {
	e := newTestEngine(t)

	t.Run("missing file is not an error", func(t *testing.T) {
		n, err := e.LoadFile(filepath.Join(t.TempDir(), "absent.json"))
		if err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		if n != 0 {
			t.Errorf("loaded %d rules, want 0", n)
		}
	})

	t.Run("loads enabled rules from disk", func(t *testing.T) {
		configs := []*domain.RuleConfig{
			{ID: "file-1", Name: "Low price", Expression: "price_per_person < 10.0", Weight: 0.4, Enabled: true},
			{ID: "file-2", Name: "Disabled", Expression: "adults > 10.0", Weight: 0.1, Enabled: false},
		}
		raw, err := json.Marshal(configs)
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(t.TempDir(), "rules.json")
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			t.Fatal(err)
		}

		n, err := e.LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		if n != 1 {
			t.Errorf("loaded %d rules, want 1", n)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := e.LoadFile(path); err == nil {
			t.Error("LoadFile = nil, want error for malformed JSON")
		}
	})
}

func TestEvaluateAll(t *testing.T) {
	e := newTestEngine(t)

	err := e.ReloadRules([]*domain.RuleConfig{
		{ID: "bool-hit", Expression: "lead_time < 2.0", Indicator: "Last-minute booking", Weight: 0.3, Enabled: true},
		{ID: "double", Expression: "cancellation_ratio", Weight: 0.1, Enabled: true},
		{ID: "miss", Expression: "adults > 10.0", Indicator: "Party booking", Weight: 0.5, Enabled: true},
	})
	if err != nil {
		t.Fatalf("ReloadRules: %v", err)
	}

	d := &domain.DerivedFeatures{
		LeadTime:          1,
		Adults:            2,
		CancellationRatio: 2.0,
	}

	results := e.EvaluateAll(context.Background(), d)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	byID := make(map[string]domain.RuleResult, len(results))
	for _, r := range results {
		byID[r.RuleID] = r
	}

	hit := byID["bool-hit"]
	if !hit.Triggered || hit.Contribution != 0.3 || hit.Indicator != "Last-minute booking" {
		t.Errorf("bool-hit = %+v, want triggered with contribution 0.3", hit)
	}

	dbl := byID["double"]
	if !dbl.Triggered || dbl.Score != 2.0 || dbl.Contribution != 0.2 {
		t.Errorf("double = %+v, want score 2.0 contribution 0.2", dbl)
	}

	miss := byID["miss"]
	if miss.Triggered || miss.Contribution != 0 || miss.Indicator != "" {
		t.Errorf("miss = %+v, want untriggered with empty indicator", miss)
	}
}

func TestEvaluateAllEmpty(t *testing.T) {
	e := newTestEngine(t)

	if got := e.EvaluateAll(context.Background(), &domain.DerivedFeatures{}); got != nil {
		t.Errorf("EvaluateAll with no rules = %v, want nil", got)
	}
}
