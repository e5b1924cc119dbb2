package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TimeLimitMs     int  `yaml:"time_limit_ms"`
	StepBudgetMs    int  `yaml:"step_budget_ms"`
	MaxDepth        int  `yaml:"max_depth"`
	RelaxBudget     bool `yaml:"relax_budget"`
	MaxTableEntries int  `yaml:"max_table_entries"`
	LogEvery        int  `yaml:"log_every"`

	Refine Refine `yaml:"refine"`
	Server Server `yaml:"server"`
}

type Refine struct {
	Splice      bool `yaml:"splice"`
	MaxSpan     int  `yaml:"max_span"`
	TimeLimitMs int  `yaml:"time_limit_ms"`
}

type Server struct {
	MaxConcurrentPlans int `yaml:"max_concurrent_plans"`
	PlansPerMinute     int `yaml:"plans_per_minute"`
	MaxPlants          int `yaml:"max_plants"`
}

func Defaults() Tuning {
	return Tuning{
		TimeLimitMs:     10_000,
		RelaxBudget:     true,
		MaxTableEntries: 4_000_000,
		LogEvery:        100,
		Refine: Refine{
			Splice:      true,
			MaxSpan:     6,
			TimeLimitMs: 2_000,
		},
		Server: Server{
			MaxConcurrentPlans: 4,
			PlansPerMinute:     30,
			MaxPlants:          5_000,
		},
	}
}

// Load reads path over Defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TimeLimitMs < 0, t.StepBudgetMs < 0, t.Refine.TimeLimitMs < 0:
		return fmt.Errorf("time limits must be >= 0")
	case t.MaxDepth < 0:
		return fmt.Errorf("max_depth must be >= 0")
	case t.MaxTableEntries < 0:
		return fmt.Errorf("max_table_entries must be >= 0")
	case t.Refine.MaxSpan < 0:
		return fmt.Errorf("refine.max_span must be >= 0")
	}
	return nil
}
