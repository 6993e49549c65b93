package models

import "fmt"

// FlowStop is one venue visit within a Flow.
type FlowStop struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Rating   float64  `json:"rating"`
	Price    string   `json:"price"`
	Reason   string   `json:"reason"`
	Time     string   `json:"time"`
	Duration int      `json:"duration"`
	Tags     []string `json:"tags"`
	YelpURL  string   `json:"yelpUrl,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

// Flow is the generated, ordered itinerary for one planning session.
type Flow struct {
	ID            string     `json:"id"`
	Stops         []FlowStop `json:"stops"`
	TotalDuration int        `json:"totalDuration"`
	BudgetRange   string     `json:"budgetRange"`
}

// SumDurations returns the sum of all stop durations.
func (f *Flow) SumDurations() int {
	total := 0
	for _, s := range f.Stops {
		total += s.Duration
	}
	return total
}

// RecomputeTotal sets TotalDuration from the current stops.
func (f *Flow) RecomputeTotal() {
	f.TotalDuration = f.SumDurations()
}

// Clone returns a deep copy so callers can mutate the result freely.
func (f Flow) Clone() Flow {
	out := f
	if f.Stops != nil {
		out.Stops = make([]FlowStop, len(f.Stops))
		for i, s := range f.Stops {
			out.Stops[i] = s.Clone()
		}
	}
	return out
}

// Clone returns a copy of the stop with its own tag slice.
func (s FlowStop) Clone() FlowStop {
	out := s
	if s.Tags != nil {
		out.Tags = append([]string(nil), s.Tags...)
	}
	return out
}

// IndexOf returns the position of the stop with the given id, or -1.
func (f *Flow) IndexOf(stopID string) int {
	for i, s := range f.Stops {
		if s.ID == stopID {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants of a flow.
func (f *Flow) Validate() error {
	seen := make(map[string]struct{}, len(f.Stops))
	for i, s := range f.Stops {
		if s.Duration <= 0 {
			return fmt.Errorf("stop %d (%s): %w", i, s.ID, ErrNonPositiveDuration)
		}
		if len(s.Tags) > MaxStopTags {
			return fmt.Errorf("stop %d (%s): %w", i, s.ID, ErrTooManyTags)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("stop %d: %w: %s", i, ErrDuplicateStopID, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	if sum := f.SumDurations(); sum != f.TotalDuration {
		return fmt.Errorf("%w: total %d, sum %d", ErrDurationMismatch, f.TotalDuration, sum)
	}
	return nil
}

// StopPatch carries replacement attributes for a swap. Nil fields keep the existing value.
type StopPatch struct {
	Name     *string   `json:"name,omitempty"`
	Category *string   `json:"category,omitempty"`
	Rating   *float64  `json:"rating,omitempty"`
	Price    *string   `json:"price,omitempty"`
	Reason   *string   `json:"reason,omitempty"`
	Duration *int      `json:"duration,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	YelpURL  *string   `json:"yelpUrl,omitempty"`
	ImageURL *string   `json:"imageUrl,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p StopPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Rating == nil && p.Price == nil &&
		p.Reason == nil && p.Duration == nil && p.Tags == nil && p.YelpURL == nil && p.ImageURL == nil
}

// SwapChange replaces attributes of the stop at StopIndex.
type SwapChange struct {
	StopIndex int       `json:"stopIndex"`
	NewStop   StopPatch `json:"newStop"`
}

// FlowChanges is the body of an edit instruction.
type FlowChanges struct {
	Swap   []SwapChange `json:"swap"`
	Remove []int        `json:"remove"`
}

// ActionUpdateFlow is the only edit action that mutates a flow.
const ActionUpdateFlow = "update_flow"

// EditInstruction is a structured directive extracted from an assistant reply.
type EditInstruction struct {
	Action  string      `json:"action"`
	Changes FlowChanges `json:"changes"`
}

// IsNoop reports whether applying the instruction cannot change a flow.
func (e *EditInstruction) IsNoop() bool {
	return e == nil || e.Action != ActionUpdateFlow || (len(e.Changes.Swap) == 0 && len(e.Changes.Remove) == 0)
}
