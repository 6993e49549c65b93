// Package planner turns a free-text outing description into ordered plan steps.
//
// Two strategies share the Decomposer interface: an AI strategy that asks a completion model
// for a JSON plan, and a deterministic keyword strategy backed by the category taxonomy.
// Chain runs them in order and returns the first non-empty plan.
package planner

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/Kelp/internal/genai"
	"github.com/BTreeMap/Kelp/internal/metrics"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/taxonomy"
)

// Decomposer produces plan steps. An empty result means "no opinion", never an error.
type Decomposer interface {
	Name() string
	Decompose(ctx context.Context, description string, window models.TimeWindow, vibes []string) []models.PlanStep
}

// Chain tries each decomposer in order.
type Chain []Decomposer

// NewDefaultChain tries the completion model first when one is configured, then the rules.
func NewDefaultChain(completer genai.Completer, reg *taxonomy.Registry) Chain {
	var c Chain
	if completer != nil {
		c = append(c, NewAIDecomposer(completer, reg))
	}
	return append(c, NewRuleDecomposer(reg))
}

func (c Chain) Name() string { return "chain" }

func (c Chain) Decompose(ctx context.Context, description string, window models.TimeWindow, vibes []string) []models.PlanStep {
	for _, d := range c {
		if d == nil {
			continue
		}
		steps := d.Decompose(ctx, description, window, vibes)
		if len(steps) > 0 {
			metrics.Decompositions.WithLabelValues(d.Name()).Inc()
			slog.Debug("Chain.Decompose: plan produced", "strategy", d.Name(), "steps", len(steps))
			return steps
		}
		slog.Info("Chain.Decompose: strategy produced no steps, falling back", "strategy", d.Name())
	}
	return nil
}

func truncate(steps []models.PlanStep) []models.PlanStep {
	if len(steps) > models.MaxPlanSteps {
		return steps[:models.MaxPlanSteps]
	}
	return steps
}
