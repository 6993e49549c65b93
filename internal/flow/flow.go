// Package flow builds itineraries: it decomposes a scenario into plan steps and assembles
// the steps into a timed flow of venues.
package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/planner"
)

// Generator produces a complete flow for a scenario.
type Generator struct {
	decomposer planner.Decomposer
	assembler  *Assembler
}

// NewGenerator wires a decomposer to an assembler.
func NewGenerator(decomposer planner.Decomposer, assembler *Assembler) *Generator {
	return &Generator{decomposer: decomposer, assembler: assembler}
}

// Generate never fails: a plan that finds no venues yields the fallback flow.
func (g *Generator) Generate(ctx context.Context, sc models.Scenario) models.Flow {
	slog.Debug("Flow Generate invoked", "location", sc.Location, "window", sc.TimeWindow, "budget", sc.Budget, "vibes", len(sc.Vibes))

	steps := g.decomposer.Decompose(ctx, sc.Description, sc.TimeWindow, sc.Vibes)
	if len(steps) == 0 {
		slog.Warn("Generator.Generate: decomposer returned no steps")
	}
	f := g.assembler.Assemble(ctx, steps, sc)

	slog.Info("Flow Generate succeeded", "id", f.ID, "steps", len(steps), "stops", len(f.Stops), "total_duration", f.TotalDuration)
	return f
}

// Plan exposes the decomposition on its own.
func (g *Generator) Plan(ctx context.Context, sc models.Scenario) []models.PlanStep {
	return g.decomposer.Decompose(ctx, sc.Description, sc.TimeWindow, sc.Vibes)
}
