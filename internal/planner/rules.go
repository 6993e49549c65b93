package planner

import (
	"context"

	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/taxonomy"
)

// RuleDecomposer matches description keywords against the taxonomy rules and falls back to
// the template for the time window. It always returns at least one step.
type RuleDecomposer struct {
	Taxonomy *taxonomy.Registry
}

// NewRuleDecomposer builds a keyword decomposer over the given registry.
func NewRuleDecomposer(reg *taxonomy.Registry) *RuleDecomposer {
	return &RuleDecomposer{Taxonomy: reg}
}

func (r *RuleDecomposer) Name() string { return "rules" }

func (r *RuleDecomposer) Decompose(_ context.Context, description string, window models.TimeWindow, _ []string) []models.PlanStep {
	tab := r.Taxonomy.Current()
	steps := tab.Match(description)
	if len(steps) == 0 {
		steps = tab.Template(window)
	}
	return truncate(steps)
}
