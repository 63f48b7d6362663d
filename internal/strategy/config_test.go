package strategy

import (
	"errors"
	"testing"
)

const planYAML = `
name: plan-alpha
entry:
  conditions:
    - type: uptrend
    - type: adxRange
      params: {min: 25, max: 45}
exit:
  operator: or
  conditions:
    - type: stopLoss
      params: {atrMultiplier: 2}
    - type: exitAfterDays
      params: {days: 10}
ranker: volatility
`

func TestParseConfig_Build(t *testing.T) {
	cfg, err := ParseConfig([]byte(planYAML))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Name != "plan-alpha" || len(cfg.Entry.Conditions) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	built, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "Stock in uptrend AND 25 ≤ ADX ≤ 45"
	if got := built.Entry.Description(); got != want {
		t.Errorf("entry description = %q, want %q", got, want)
	}
	if got := built.Exit.Description(); got != "Stop loss (2.0 ATR) OR Exit after 10 days" {
		t.Errorf("exit description = %q", got)
	}
	if _, ok := built.Ranker.(VolatilityRanker); !ok {
		t.Errorf("ranker = %T, want VolatilityRanker", built.Ranker)
	}
}

func TestParseConfig_EmptyStrategy(t *testing.T) {
	_, err := ParseConfig([]byte("name: empty\nexit:\n  conditions:\n    - type: stopLoss\n"))
	if !errors.Is(err, ErrEmptyStrategy) {
		t.Fatalf("err = %v, want ErrEmptyStrategy", err)
	}
}

func TestRegistry_UnknownAndBadParams(t *testing.T) {
	if _, err := NewEntryCondition("moonPhase", nil); !errors.Is(err, ErrUnknownCondition) {
		t.Errorf("err = %v, want ErrUnknownCondition", err)
	}
	if _, err := NewExitCondition("priceBelowEma", Params{"emaPeriod": 7}); err == nil {
		t.Error("expected unsupported EMA period error")
	}
	if _, err := NewExitCondition("exitAfterDays", Params{"days": 2.5}); err == nil {
		t.Error("expected non-integer days error")
	}
	c, err := NewExitCondition("exitAfterDays", Params{"days": "4"})
	if err != nil {
		t.Fatalf("string param: %v", err)
	}
	if c.(ExitAfterDays).Days != 4 {
		t.Errorf("Days = %d, want 4", c.(ExitAfterDays).Days)
	}
}

func TestRegistry_EveryTypeBuildsWithDefaults(t *testing.T) {
	for _, kind := range EntryTypes() {
		if _, err := NewEntryCondition(kind, nil); err != nil {
			t.Errorf("entry %s: %v", kind, err)
		}
	}
	for _, kind := range ExitTypes() {
		if _, err := NewExitCondition(kind, nil); err != nil {
			t.Errorf("exit %s: %v", kind, err)
		}
	}
}
