package planner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/BTreeMap/Kelp/internal/genai"
	"github.com/BTreeMap/Kelp/internal/metrics"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/taxonomy"
	"github.com/tidwall/gjson"
)

// Defaults for fields the model leaves out or gets wrong.
const (
	DefaultStepType     = "Activity"
	DefaultStepCategory = "restaurants"
	DefaultStepDuration = 60

	decomposeTemperature = 0.3
	decomposeMaxTokens   = 1024
)

// AIDecomposer asks a completion model to split the description into stops.
type AIDecomposer struct {
	completer genai.Completer
	taxonomy  *taxonomy.Registry
}

// NewAIDecomposer builds an AI decomposer. Category codes in the answer are mapped through reg.
func NewAIDecomposer(completer genai.Completer, reg *taxonomy.Registry) *AIDecomposer {
	return &AIDecomposer{completer: completer, taxonomy: reg}
}

func (a *AIDecomposer) Name() string { return "ai" }

func (a *AIDecomposer) Decompose(ctx context.Context, description string, window models.TimeWindow, vibes []string) []models.PlanStep {
	tab := a.taxonomy.Current()
	prompt := BuildDecomposePrompt(description, window, vibes, tab.Vocabulary)

	content, err := a.completer.Complete(ctx, "", []models.ChatMessage{{Role: models.RoleUser, Content: prompt}},
		genai.Temperature(decomposeTemperature), genai.MaxTokens(decomposeMaxTokens))
	if err != nil {
		metrics.Completions.WithLabelValues("decompose", "error").Inc()
		slog.Warn("AIDecomposer.Decompose: completion failed", "error", err)
		return nil
	}
	metrics.Completions.WithLabelValues("decompose", "ok").Inc()

	steps := ParseSteps(content, tab)
	slog.Debug("AIDecomposer.Decompose: parsed plan", "steps", len(steps), "response_length", len(content))
	return steps
}

// BuildDecomposePrompt renders the decomposition request.
func BuildDecomposePrompt(description string, window models.TimeWindow, vibes []string, vocabulary []string) string {
	vibeText := strings.Join(vibes, ", ")
	if vibeText == "" {
		vibeText = "casual"
	}
	var b strings.Builder
	b.WriteString("Analyze this outing plan and extract the distinct activities/stops the user wants.\n\n")
	fmt.Fprintf(&b, "User's plan: %q\n", description)
	fmt.Fprintf(&b, "Time of day: %s\n", window)
	fmt.Fprintf(&b, "Vibes: %s\n\n", vibeText)
	fmt.Fprintf(&b, "Return a JSON array of %d-%d stops. Each stop should have:\n", models.MinAIPlanSteps, models.MaxPlanSteps)
	b.WriteString(`- type: human readable activity type (e.g., "Sightseeing", "Lunch", "Bar", "Nightclub", "Coffee", "Museum", "Park", "Dinner", "Rooftop Bar", "Jazz Club")` + "\n")
	fmt.Fprintf(&b, "- yelpCategory: the category to search, one of: %s\n", strings.Join(vocabulary, ", "))
	b.WriteString(`- searchTerm: additional search term to find the right venue (e.g., "rooftop", "live music", "craft cocktails")` + "\n")
	fmt.Fprintf(&b, "- duration: estimated time in minutes (%d-%d)\n\n", models.MinStepDuration, models.MaxStepDuration)
	b.WriteString(`Parse the description for what the user actually wants. If they say "sightseeing, lunch, bar, nightclub", create a stop for each of those, not just restaurants.` + "\n\n")
	b.WriteString("Respond ONLY with the JSON array, no other text.")
	return b.String()
}

// ParseSteps extracts plan steps from a model response. It returns nil when the response has
// no usable array or fewer than models.MinAIPlanSteps usable steps.
func ParseSteps(content string, tab *taxonomy.Table) []models.PlanStep {
	raw := genai.ExtractJSONArray(content)
	if raw == "" || !gjson.Valid(raw) {
		return nil
	}
	arr := gjson.Parse(raw)
	if !arr.IsArray() {
		return nil
	}

	var steps []models.PlanStep
	arr.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		category := stringOr(item.Get("yelpCategory"), DefaultStepCategory)
		if tab != nil {
			category = tab.Canonical(category)
		}
		steps = append(steps, models.PlanStep{
			Type:       stringOr(item.Get("type"), DefaultStepType),
			Category:   category,
			SearchTerm: stringOr(item.Get("searchTerm"), ""),
			Duration:   models.ClampDuration(durationOr(item.Get("duration"), DefaultStepDuration)),
		})
		return len(steps) < models.MaxPlanSteps
	})
	if len(steps) < models.MinAIPlanSteps {
		return nil
	}
	return steps
}

func stringOr(r gjson.Result, def string) string {
	if r.Type != gjson.String {
		return def
	}
	if s := strings.TrimSpace(r.Str); s != "" {
		return s
	}
	return def
}

// durationOr accepts numbers and numeric strings; zero, negative and missing values use def.
func durationOr(r gjson.Result, def int) int {
	var n float64
	switch r.Type {
	case gjson.Number:
		n = r.Num
	case gjson.String:
		n = gjson.Parse(strings.TrimSpace(r.Str)).Num
	default:
		return def
	}
	if n <= 0 || math.IsNaN(n) {
		return def
	}
	return int(math.Round(n))
}
