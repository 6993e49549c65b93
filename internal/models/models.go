// Package models defines the core data structures for Kelp.
//
// It includes the scenario a user submits, the intermediate plan steps, the generated flow
// and its stops, and the structured edit instructions extracted from assistant replies.
// These types are shared across modules and double as the HTTP wire format.
package models

import (
	"errors"
	"strings"
)

// Validation constants for input validation
const (
	// MinCrewSize is the smallest accepted crew.
	MinCrewSize = 1
	// MaxCrewSize is the largest accepted crew.
	MaxCrewSize = 20
	// DefaultCrewSize is used when a request omits the crew size.
	DefaultCrewSize = 2
	// MaxDescriptionLength caps the free-text scenario description.
	MaxDescriptionLength = 2000
	// MaxChatMessageLength caps a single chat message.
	MaxChatMessageLength = 4000
	// MaxStopTags is the maximum number of tags on a stop.
	MaxStopTags = 3
	// MinAIPlanSteps is the fewest steps an AI decomposition may return before the keyword
	// rules take over.
	MinAIPlanSteps = 2
	// MaxPlanSteps is the maximum number of plan steps in a decomposition.
	MaxPlanSteps = 5
	// MinStepDuration and MaxStepDuration bound a plan step's duration in minutes.
	MinStepDuration = 30
	MaxStepDuration = 120
)

// Error variables for better error handling and testability
var (
	ErrEmptyLocation       = errors.New("location is required")
	ErrDescriptionTooLong  = errors.New("description exceeds maximum length")
	ErrInvalidCrewSize     = errors.New("crew size must be between 1 and 20")
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrMessageTooLong      = errors.New("message exceeds maximum length")
	ErrMissingFlow         = errors.New("flow is required")
	ErrUnknownEditAction   = errors.New("unknown edit action")
	ErrMissingStopID       = errors.New("stopId is required")
	ErrMissingReplacement  = errors.New("newStop is required for swap")
	ErrStopNotFound        = errors.New("stop not found")
	ErrDurationMismatch    = errors.New("total duration does not match the sum of stop durations")
	ErrDuplicateStopID     = errors.New("duplicate stop id")
	ErrNonPositiveDuration = errors.New("stop duration must be positive")
	ErrTooManyTags         = errors.New("stop has too many tags")
	ErrEmptyRecipients     = errors.New("at least one recipient is required")
)

// ErrorResponse is the body returned for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error creates an error response body with a message.
func Error(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

// BudgetTier is the ordered budget enumeration: Econ < Standard < Premium < Splurge.
type BudgetTier int

const (
	BudgetUnknown BudgetTier = iota
	BudgetEcon
	BudgetStandard
	BudgetPremium
	BudgetSplurge
)

// Default table entries for unrecognized budgets.
const (
	DefaultPriceFilter = "1,2,3"
	DefaultBudgetRange = "$40-80 per person"
)

var budgetSymbols = map[BudgetTier]string{
	BudgetEcon:     "$",
	BudgetStandard: "$$",
	BudgetPremium:  "$$$",
	BudgetSplurge:  "$$$$",
}

// priceFilters maps each tier to the inclusive provider price-tier set.
var priceFilters = map[BudgetTier]string{
	BudgetEcon:     "1",
	BudgetStandard: "1,2",
	BudgetPremium:  "1,2,3",
	BudgetSplurge:  "1,2,3,4",
}

var budgetRanges = map[BudgetTier]string{
	BudgetEcon:     "$20-40 per person",
	BudgetStandard: "$40-80 per person",
	BudgetPremium:  "$80-120 per person",
	BudgetSplurge:  "$120+ per person",
}

// ParseBudgetTier accepts the dollar-sign form ("$$") or a tier name ("standard").
// Anything else yields BudgetUnknown.
func ParseBudgetTier(s string) BudgetTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "$", "econ", "economy", "budget":
		return BudgetEcon
	case "$$", "standard", "moderate":
		return BudgetStandard
	case "$$$", "premium":
		return BudgetPremium
	case "$$$$", "splurge":
		return BudgetSplurge
	default:
		return BudgetUnknown
	}
}

// String returns the dollar-sign form, or "" for BudgetUnknown.
func (b BudgetTier) String() string {
	return budgetSymbols[b]
}

// PriceFilter returns the provider price filter for the tier.
func (b BudgetTier) PriceFilter() string {
	if f, ok := priceFilters[b]; ok {
		return f
	}
	return DefaultPriceFilter
}

// Range returns the per-person budget display string for the tier.
func (b BudgetTier) Range() string {
	if r, ok := budgetRanges[b]; ok {
		return r
	}
	return DefaultBudgetRange
}

// GetBudgetRange maps a raw budget value to its display range.
func GetBudgetRange(budget string) string {
	return ParseBudgetTier(budget).Range()
}

// PriceFilterFor maps a raw budget value to its provider price filter.
func PriceFilterFor(budget string) string {
	return ParseBudgetTier(budget).PriceFilter()
}

// TimeWindow is the part of the day the outing happens in.
type TimeWindow string

const (
	WindowAfternoon TimeWindow = "afternoon"
	WindowEvening   TimeWindow = "evening"
	WindowLateNight TimeWindow = "late night"
)

// DefaultAnchorHour is the start hour used for unrecognized windows.
const DefaultAnchorHour = 14

// ParseTimeWindow normalizes spelling variants such as "late-night" or "Late_Night".
// Unknown values are returned lower-cased and trimmed so they still fall through to defaults.
func ParseTimeWindow(s string) TimeWindow {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", " ", "_", " ").Replace(norm)
	switch norm {
	case "afternoon":
		return WindowAfternoon
	case "evening":
		return WindowEvening
	case "late night", "latenight", "night":
		return WindowLateNight
	default:
		return TimeWindow(norm)
	}
}

// AnchorHour returns the hour (0-23) the first stop starts at.
func (w TimeWindow) AnchorHour() int {
	switch w {
	case WindowAfternoon:
		return 12
	case WindowEvening:
		return 18
	case WindowLateNight:
		return 21
	default:
		return DefaultAnchorHour
	}
}

// Scenario is the parsed, validated description of a desired outing.
type Scenario struct {
	Location    string
	Description string
	Budget      BudgetTier
	TimeWindow  TimeWindow
	Vibes       []string
	CrewSize    int
}

// GenerateFlowRequest is the body of POST /generate-flow.
type GenerateFlowRequest struct {
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Budget      string   `json:"budget"`
	TimeWindow  string   `json:"timeWindow"`
	Vibes       []string `json:"vibes"`
	CrewSize    *int     `json:"crewSize,omitempty"`
}

// Validate performs validation on a GenerateFlowRequest.
func (r *GenerateFlowRequest) Validate() error {
	if strings.TrimSpace(r.Location) == "" {
		return ErrEmptyLocation
	}
	if len(r.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if r.CrewSize != nil && (*r.CrewSize < MinCrewSize || *r.CrewSize > MaxCrewSize) {
		return ErrInvalidCrewSize
	}
	return nil
}

// Scenario converts the request into a Scenario. Call Validate first.
func (r *GenerateFlowRequest) Scenario() Scenario {
	crew := DefaultCrewSize
	if r.CrewSize != nil {
		crew = *r.CrewSize
	}
	vibes := make([]string, 0, len(r.Vibes))
	for _, v := range r.Vibes {
		if v = strings.TrimSpace(v); v != "" {
			vibes = append(vibes, v)
		}
	}
	return Scenario{
		Location:    strings.TrimSpace(r.Location),
		Description: strings.TrimSpace(r.Description),
		Budget:      ParseBudgetTier(r.Budget),
		TimeWindow:  ParseTimeWindow(r.TimeWindow),
		Vibes:       vibes,
		CrewSize:    crew,
	}
}

// PlanStep is one intended activity before any venue search has been run.
type PlanStep struct {
	Type       string `json:"type"`
	Category   string `json:"yelpCategory"`
	SearchTerm string `json:"searchTerm"`
	Duration   int    `json:"duration"`
}

// ClampDuration bounds a step duration to [MinStepDuration, MaxStepDuration].
func ClampDuration(minutes int) int {
	if minutes < MinStepDuration {
		return MinStepDuration
	}
	if minutes > MaxStepDuration {
		return MaxStepDuration
	}
	return minutes
}
