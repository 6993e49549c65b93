// Package itinerary implements the pure edit operations on a flow. Every operation returns a
// new Flow and leaves its input untouched; every result carries a recomputed TotalDuration.
package itinerary

import (
	"fmt"
	"log/slog"

	"github.com/BTreeMap/Kelp/internal/models"
)

// Engine applies edits to flows.
//
// By default reorders and removals re-time the stops from the original first stop's time so
// displayed times stay consistent with the stop order. PreserveTimes keeps every stop's time
// string as it was. Swaps never re-time.
type Engine struct {
	PreserveTimes bool
}

// MoveUp swaps the stop with its predecessor. The first stop and unknown ids leave the flow unchanged.
func (e Engine) MoveUp(f models.Flow, stopID string) models.Flow {
	out := f.Clone()
	i := out.IndexOf(stopID)
	if i <= 0 {
		out.RecomputeTotal()
		return out
	}
	out.Stops[i-1], out.Stops[i] = out.Stops[i], out.Stops[i-1]
	return e.finish(f, out)
}

// MoveDown swaps the stop with its successor. The last stop and unknown ids leave the flow unchanged.
func (e Engine) MoveDown(f models.Flow, stopID string) models.Flow {
	out := f.Clone()
	i := out.IndexOf(stopID)
	if i < 0 || i >= len(out.Stops)-1 {
		out.RecomputeTotal()
		return out
	}
	out.Stops[i], out.Stops[i+1] = out.Stops[i+1], out.Stops[i]
	return e.finish(f, out)
}

// Remove drops the stop with the given id.
func (e Engine) Remove(f models.Flow, stopID string) models.Flow {
	i := f.IndexOf(stopID)
	if i < 0 {
		out := f.Clone()
		out.RecomputeTotal()
		return out
	}
	return e.ApplyRemovals(f, []int{i})
}

// ApplySwap overwrites the present fields of patch onto the stop at index. The stop keeps its
// id and time. Non-positive durations are ignored and tags are capped.
func (e Engine) ApplySwap(f models.Flow, index int, patch models.StopPatch) models.Flow {
	out := f.Clone()
	if index < 0 || index >= len(out.Stops) {
		slog.Debug("Engine.ApplySwap: index out of range", "index", index, "stops", len(out.Stops))
		out.RecomputeTotal()
		return out
	}
	applyPatch(&out.Stops[index], patch)
	out.RecomputeTotal()
	return out
}

// ApplyRemovals removes every listed index at once, interpreted against the order before any
// removal. Duplicates and out-of-range indices are ignored.
func (e Engine) ApplyRemovals(f models.Flow, indices []int) models.Flow {
	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(f.Stops) {
			drop[i] = struct{}{}
		}
	}
	out := f.Clone()
	if len(drop) == 0 {
		out.RecomputeTotal()
		return out
	}
	kept := make([]models.FlowStop, 0, len(out.Stops)-len(drop))
	for i, s := range out.Stops {
		if _, gone := drop[i]; !gone {
			kept = append(kept, s)
		}
	}
	out.Stops = kept
	return e.finish(f, out)
}

// ApplyEdit applies an instruction: swaps first, then removals, all indices referring to the
// flow as supplied. Anything but an update_flow action leaves the flow unchanged.
func (e Engine) ApplyEdit(f models.Flow, instr *models.EditInstruction) models.Flow {
	if instr.IsNoop() {
		out := f.Clone()
		out.RecomputeTotal()
		return out
	}
	out := f
	for _, sw := range instr.Changes.Swap {
		out = e.ApplySwap(out, sw.StopIndex, sw.NewStop)
	}
	return e.ApplyRemovals(out, instr.Changes.Remove)
}

// Apply runs one direct edit by stop id.
func (e Engine) Apply(f models.Flow, action, stopID string, patch *models.StopPatch) (models.Flow, error) {
	i := f.IndexOf(stopID)
	if i < 0 {
		return models.Flow{}, fmt.Errorf("%w: %s", models.ErrStopNotFound, stopID)
	}
	switch action {
	case models.EditActionMoveUp:
		return e.MoveUp(f, stopID), nil
	case models.EditActionMoveDown:
		return e.MoveDown(f, stopID), nil
	case models.EditActionRemove:
		return e.Remove(f, stopID), nil
	case models.EditActionSwap:
		if patch == nil {
			return models.Flow{}, models.ErrMissingReplacement
		}
		return e.ApplySwap(f, i, *patch), nil
	}
	return models.Flow{}, fmt.Errorf("%w: %s", models.ErrUnknownEditAction, action)
}

// finish recomputes the total and, unless times are preserved, re-times out from the first
// stop time of the original flow.
func (e Engine) finish(orig, out models.Flow) models.Flow {
	out.RecomputeTotal()
	if e.PreserveTimes || len(orig.Stops) == 0 {
		return out
	}
	start, ok := ParseClock(orig.Stops[0].Time)
	if !ok {
		return out
	}
	Reschedule(out.Stops, start)
	return out
}

func applyPatch(s *models.FlowStop, p models.StopPatch) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Rating != nil {
		s.Rating = *p.Rating
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
	if p.Reason != nil {
		s.Reason = *p.Reason
	}
	if p.Duration != nil && *p.Duration > 0 {
		s.Duration = *p.Duration
	}
	if p.Tags != nil {
		tags := append([]string(nil), (*p.Tags)...)
		if len(tags) > models.MaxStopTags {
			tags = tags[:models.MaxStopTags]
		}
		s.Tags = tags
	}
	if p.YelpURL != nil {
		s.YelpURL = *p.YelpURL
	}
	if p.ImageURL != nil {
		s.ImageURL = *p.ImageURL
	}
}
