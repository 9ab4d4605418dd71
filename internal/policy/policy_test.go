package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qingtalk/guanzhao/internal/types"
)

func TestDefaultLadderIsMonotonic(t *testing.T) {
	p := Default()
	order := []types.FrequencyLevel{
		types.FrequencyEager,
		types.FrequencyModerate,
		types.FrequencySparing,
		types.FrequencySilent,
	}
	for i := 1; i < len(order); i++ {
		hi := p.LimitsFor(order[i-1])
		lo := p.LimitsFor(order[i])
		if lo.InAppDay > hi.InAppDay || lo.InAppWeek > hi.InAppWeek ||
			lo.PushDay > hi.PushDay || lo.PushWeek > hi.PushWeek {
			t.Fatalf("level %s grants more budget than %s", order[i], order[i-1])
		}
	}
	if p.LimitsFor(types.FrequencySilent) != (types.BudgetLimits{}) {
		t.Fatal("silent level must grant zero budget")
	}
}

func TestLimitsForUnknownLevelGrantsNothing(t *testing.T) {
	if Default().LimitsFor(types.FrequencyLevel("bogus")) != (types.BudgetLimits{}) {
		t.Fatal("unknown level must grant zero budget")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engagement.yaml")
	body := `
levels:
  moderate:
    in_app_day: 2
    in_app_week: 7
    push_day: 1
    push_week: 3
triggers:
  daily_checkin:
    budget_cost: 1
    cooldown_days: 2
  weekly_digest:
    budget_cost: 1
    cooldown_days: 7
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := p.LimitsFor(types.FrequencyModerate); got.InAppDay != 2 || got.InAppWeek != 7 {
		t.Fatalf("moderate limits not overridden: %+v", got)
	}
	if got := p.LimitsFor(types.FrequencyEager); got.InAppDay != 6 {
		t.Fatalf("eager limits should keep defaults: %+v", got)
	}
	if spec, ok := p.SpecFor(types.TriggerDailyCheckin); !ok || spec.CooldownDays != 2 {
		t.Fatalf("daily_checkin spec not overridden: %+v ok=%v", spec, ok)
	}
	if spec, ok := p.SpecFor("weekly_digest"); !ok || spec.CooldownDays != 7 {
		t.Fatalf("new trigger not merged: %+v ok=%v", spec, ok)
	}
	if _, ok := p.SpecFor(types.TriggerNightlyWrapup); !ok {
		t.Fatal("default trigger lost in merge")
	}
}

func TestLoadRejectsUnknownLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engagement.yaml")
	if err := os.WriteFile(path, []byte("levels:\n  shouty:\n    in_app_day: 9\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown frequency level")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if p.LimitsFor(types.FrequencyEager).InAppDay != 6 {
		t.Fatal("defaults missing")
	}
}
