package domain

import (
	"fmt"
	"strings"
	"time"
)

// StrategyKind represents how an asset's current value is computed
type StrategyKind string

const (
	StrategyKindFixed   StrategyKind = "FIXED"
	StrategyKindDynamic StrategyKind = "DYNAMIC"
	StrategyKindManual  StrategyKind = "MANUAL"
)

// FixedStrategy projects value with deterministic compound growth
type FixedStrategy struct {
	GrowthRate float64 // Percent per year, e.g. 7 for 7%
}

// DynamicStrategy computes value by running a user-authored script.
// LastValue and LastValueAt are the durable fallback, written only after a successful run.
type DynamicStrategy struct {
	ScriptSource string
	LastValue    *float64 // Per-unit price returned by the last successful run
	LastValueAt  *time.Time
}

// ManualStrategy holds a value set directly by the user
type ManualStrategy struct {
	Value     *float64
	UpdatedAt time.Time
}

// ValuationStrategy is a tagged union: Kind selects which of the variant pointers is active.
// Valuation logic must only read the variant named by Kind.
type ValuationStrategy struct {
	Kind    StrategyKind
	Fixed   *FixedStrategy
	Dynamic *DynamicStrategy
	Manual  *ManualStrategy
}

// NewFixedStrategy creates a fixed-rate growth strategy
func NewFixedStrategy(growthRate float64) *ValuationStrategy {
	return &ValuationStrategy{Kind: StrategyKindFixed, Fixed: &FixedStrategy{GrowthRate: growthRate}}
}

// NewDynamicStrategy creates a scripted strategy with no fallback value yet
func NewDynamicStrategy(scriptSource string) *ValuationStrategy {
	return &ValuationStrategy{Kind: StrategyKindDynamic, Dynamic: &DynamicStrategy{ScriptSource: scriptSource}}
}

// NewManualStrategy creates a manual strategy holding value
func NewManualStrategy(value float64, updatedAt time.Time) *ValuationStrategy {
	return &ValuationStrategy{Kind: StrategyKindManual, Manual: &ManualStrategy{Value: &value, UpdatedAt: updatedAt}}
}

// Validate ensures the variant named by Kind is present and usable.
// Missing required fields are reported as ErrStrategyMissing.
func (s *ValuationStrategy) Validate() error {
	switch s.Kind {
	case StrategyKindFixed:
		if s.Fixed == nil {
			return fmt.Errorf("%w: fixed strategy has no growth rate", ErrStrategyMissing)
		}
	case StrategyKindDynamic:
		if s.Dynamic == nil || strings.TrimSpace(s.Dynamic.ScriptSource) == "" {
			return fmt.Errorf("%w: dynamic strategy has no script source", ErrStrategyMissing)
		}
	case StrategyKindManual:
		if s.Manual == nil {
			return fmt.Errorf("%w: manual strategy has no value record", ErrStrategyMissing)
		}
	default:
		return fmt.Errorf("%w: unknown strategy kind %q", ErrStrategyMissing, s.Kind)
	}
	return nil
}

// Active returns a copy of the strategy with only the variant named by Kind kept.
// Switching kinds through Active drops the fields of the previous strategy.
func (s ValuationStrategy) Active() ValuationStrategy {
	out := ValuationStrategy{Kind: s.Kind}
	switch s.Kind {
	case StrategyKindFixed:
		out.Fixed = s.Fixed
	case StrategyKindDynamic:
		out.Dynamic = s.Dynamic
	case StrategyKindManual:
		out.Manual = s.Manual
	}
	return out
}
