// Package policy holds the engagement policy table: budget limits per
// frequency-ladder level and per-trigger defaults (cost, cooldown). The
// table ships with embedded defaults and can be overridden from a YAML file.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qingtalk/guanzhao/internal/types"
)

// TriggerSpec carries the defaults applied when the caller commits a firing
// of this trigger without overriding them.
type TriggerSpec struct {
	BudgetCost   int `yaml:"budget_cost" json:"budget_cost"`
	CooldownDays int `yaml:"cooldown_days" json:"cooldown_days"`
}

type Policy struct {
	Levels   map[types.FrequencyLevel]types.BudgetLimits `yaml:"levels"`
	Triggers map[string]TriggerSpec                      `yaml:"triggers"`
}

// Default returns the built-in policy table.
func Default() *Policy {
	return &Policy{
		Levels: map[types.FrequencyLevel]types.BudgetLimits{
			types.FrequencyEager:    {InAppDay: 6, InAppWeek: 20, PushDay: 2, PushWeek: 8},
			types.FrequencyModerate: {InAppDay: 3, InAppWeek: 10, PushDay: 1, PushWeek: 5},
			types.FrequencySparing:  {InAppDay: 1, InAppWeek: 4, PushDay: 1, PushWeek: 2},
			types.FrequencySilent:   {},
		},
		Triggers: map[string]TriggerSpec{
			types.TriggerDailyCheckin:       {BudgetCost: 1, CooldownDays: 1},
			types.TriggerNightlyWrapup:      {BudgetCost: 1, CooldownDays: 1},
			types.TriggerOverloadProtection: {BudgetCost: 1, CooldownDays: 0},
		},
	}
}

// Load reads a YAML policy file and merges it over the defaults. Levels and
// triggers present in the file replace the default entry wholesale; the rest
// stay. An empty path returns the defaults.
func Load(path string) (*Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var overlay Policy
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	for level, limits := range overlay.Levels {
		if !level.Valid() {
			return nil, fmt.Errorf("policy file: unknown frequency level %q", level)
		}
		p.Levels[level] = limits
	}
	for id, spec := range overlay.Triggers {
		p.Triggers[id] = spec
	}
	return p, nil
}

// LimitsFor returns the budget limits for a ladder level. Unknown levels get
// the silent (all-zero) limits rather than an error: a bad row should never
// grant budget.
func (p *Policy) LimitsFor(level types.FrequencyLevel) types.BudgetLimits {
	if limits, ok := p.Levels[level]; ok {
		return limits
	}
	return types.BudgetLimits{}
}

// SpecFor returns the defaults for a trigger id and whether it is known.
func (p *Policy) SpecFor(triggerID string) (TriggerSpec, bool) {
	spec, ok := p.Triggers[triggerID]
	return spec, ok
}
