package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/BTreeMap/Kelp/internal/itinerary"
	"github.com/BTreeMap/Kelp/internal/metrics"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/util"
	"github.com/BTreeMap/Kelp/internal/venue"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSearchConcurrency bounds parallel venue searches per request.
	DefaultSearchConcurrency = 3
	// candidatePool is how many of the best-rated candidates a stop is drawn from.
	candidatePool = 5
)

// Assembler turns plan steps into a timed flow, one venue search per step.
type Assembler struct {
	searcher    venue.Searcher
	concurrency int
	randIndex   func(n int) int
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithConcurrency sets how many searches run at once.
func WithConcurrency(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithRandIndex replaces the random source used for venue and reason selection.
func WithRandIndex(fn func(n int) int) AssemblerOption {
	return func(a *Assembler) {
		if fn != nil {
			a.randIndex = fn
		}
	}
}

// NewAssembler creates an assembler over the given searcher.
func NewAssembler(searcher venue.Searcher, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		searcher:    searcher,
		concurrency: DefaultSearchConcurrency,
		randIndex:   util.RandomIndex,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble searches for every step concurrently, then picks one venue per step in plan order.
// Steps without candidates are skipped; when none produce a stop the fallback flow is returned.
func (a *Assembler) Assemble(ctx context.Context, steps []models.PlanStep, sc models.Scenario) models.Flow {
	results := a.searchAll(ctx, steps, sc)

	clock := sc.TimeWindow.AnchorHour() * 60
	used := make(map[string]struct{})
	stopIDs := make(map[string]struct{})
	stops := make([]models.FlowStop, 0, len(steps))

	for i, step := range steps {
		candidates := rankCandidates(results[i])
		if len(candidates) == 0 {
			slog.Info("Assembler.Assemble: no venue for step", "step", i, "type", step.Type, "category", step.Category)
			continue
		}
		pick := a.choose(candidates, used)
		if pick.ID != "" {
			used[pick.ID] = struct{}{}
		}

		step.Duration = models.ClampDuration(step.Duration)
		stop := a.buildStop(pick, step, sc.Vibes, i)
		stop.ID = uniqueStopID(stop.ID, stopIDs)
		stop.Time = itinerary.FormatClock(clock)
		clock += step.Duration
		stops = append(stops, stop)
	}

	if len(stops) == 0 {
		slog.Info("Assembler.Assemble: no venues found, returning fallback flow", "location", sc.Location, "steps", len(steps))
		metrics.FlowsGenerated.WithLabelValues("fallback").Inc()
		return FallbackFlow(sc)
	}

	f := models.Flow{
		ID:          util.GenerateFlowID(),
		Stops:       stops,
		BudgetRange: sc.Budget.Range(),
	}
	f.RecomputeTotal()
	metrics.FlowsGenerated.WithLabelValues("venues").Inc()
	slog.Debug("Assembler.Assemble: flow assembled", "id", f.ID, "stops", len(stops), "total_duration", f.TotalDuration)
	return f
}

// searchAll runs one search per step. Results land in per-step slots so order never depends
// on which search finishes first.
func (a *Assembler) searchAll(ctx context.Context, steps []models.PlanStep, sc models.Scenario) [][]venue.Candidate {
	results := make([][]venue.Candidate, len(steps))
	priceFilter := sc.Budget.PriceFilter()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, step := range steps {
		g.Go(func() error {
			results[i] = a.searcher.Search(gctx, venue.Query{
				Location:    sc.Location,
				Category:    step.Category,
				Term:        step.SearchTerm,
				PriceFilter: priceFilter,
			})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// rankCandidates drops duplicates and nameless entries, sorts by rating and keeps the best few.
func rankCandidates(in []venue.Candidate) []venue.Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]venue.Candidate, 0, len(in))
	for _, c := range in {
		if c.Name == "" {
			continue
		}
		if c.ID != "" {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if len(out) > candidatePool {
		out = out[:candidatePool]
	}
	return out
}

// choose picks uniformly among candidates not used earlier in the flow, or among all of them
// when every candidate has been used.
func (a *Assembler) choose(candidates []venue.Candidate, used map[string]struct{}) venue.Candidate {
	fresh := make([]venue.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := used[c.ID]; !ok || c.ID == "" {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		fresh = candidates
	}
	return fresh[a.randIndex(len(fresh))]
}

func uniqueStopID(id string, taken map[string]struct{}) string {
	candidate := id
	for n := 2; ; n++ {
		if _, ok := taken[candidate]; !ok {
			taken[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
}
