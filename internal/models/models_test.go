package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestBudgetTables_Total(t *testing.T) {
	tests := []struct {
		budget     string
		wantTier   BudgetTier
		wantFilter string
		wantRange  string
	}{
		{"$", BudgetEcon, "1", "$20-40 per person"},
		{"$$", BudgetStandard, "1,2", "$40-80 per person"},
		{"$$$", BudgetPremium, "1,2,3", "$80-120 per person"},
		{"$$$$", BudgetSplurge, "1,2,3,4", "$120+ per person"},
		{"Splurge", BudgetSplurge, "1,2,3,4", "$120+ per person"},
		{"", BudgetUnknown, DefaultPriceFilter, DefaultBudgetRange},
		{"$$$$$", BudgetUnknown, DefaultPriceFilter, DefaultBudgetRange},
		{"cheap-ish", BudgetUnknown, DefaultPriceFilter, DefaultBudgetRange},
	}
	for _, tt := range tests {
		t.Run(tt.budget, func(t *testing.T) {
			if got := ParseBudgetTier(tt.budget); got != tt.wantTier {
				t.Errorf("ParseBudgetTier(%q) = %v, want %v", tt.budget, got, tt.wantTier)
			}
			if got := PriceFilterFor(tt.budget); got != tt.wantFilter {
				t.Errorf("PriceFilterFor(%q) = %q, want %q", tt.budget, got, tt.wantFilter)
			}
			if got := GetBudgetRange(tt.budget); got != tt.wantRange {
				t.Errorf("GetBudgetRange(%q) = %q, want %q", tt.budget, got, tt.wantRange)
			}
		})
	}
}

func TestBudgetTier_Ordered(t *testing.T) {
	if !(BudgetEcon < BudgetStandard && BudgetStandard < BudgetPremium && BudgetPremium < BudgetSplurge) {
		t.Error("budget tiers are not ordered")
	}
}

func TestTimeWindow_AnchorHour(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"afternoon", 12},
		{"evening", 18},
		{"late night", 21},
		{"Late-Night", 21},
		{"late_night", 21},
		{"brunch o'clock", DefaultAnchorHour},
		{"", DefaultAnchorHour},
	}
	for _, tt := range tests {
		if got := ParseTimeWindow(tt.in).AnchorHour(); got != tt.want {
			t.Errorf("AnchorHour(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGenerateFlowRequest_Validate(t *testing.T) {
	zero, big, ok := 0, 21, 4
	tests := []struct {
		name string
		req  GenerateFlowRequest
		want error
	}{
		{"valid", GenerateFlowRequest{Location: "Dallas, TX", CrewSize: &ok}, nil},
		{"missing location", GenerateFlowRequest{Location: "  "}, ErrEmptyLocation},
		{"crew too small", GenerateFlowRequest{Location: "x", CrewSize: &zero}, ErrInvalidCrewSize},
		{"crew too large", GenerateFlowRequest{Location: "x", CrewSize: &big}, ErrInvalidCrewSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateFlowRequest_Scenario(t *testing.T) {
	req := GenerateFlowRequest{
		Location:    " Dallas, TX ",
		Description: "chill evening",
		Budget:      "$$",
		TimeWindow:  "evening",
		Vibes:       []string{"chill", " ", ""},
	}
	sc := req.Scenario()
	if sc.Location != "Dallas, TX" {
		t.Errorf("expected trimmed location, got %q", sc.Location)
	}
	if sc.Budget != BudgetStandard || sc.TimeWindow != WindowEvening {
		t.Errorf("unexpected budget/window: %v %v", sc.Budget, sc.TimeWindow)
	}
	if len(sc.Vibes) != 1 || sc.Vibes[0] != "chill" {
		t.Errorf("expected blank vibes dropped, got %v", sc.Vibes)
	}
	if sc.CrewSize != DefaultCrewSize {
		t.Errorf("expected default crew size, got %d", sc.CrewSize)
	}
}

func TestFlow_ValidateAndClone(t *testing.T) {
	f := Flow{
		ID: "flow-1",
		Stops: []FlowStop{
			{ID: "a", Duration: 60, Tags: []string{"Dinner"}},
			{ID: "b", Duration: 90},
		},
		TotalDuration: 150,
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := f.Clone()
	c.Stops[0].Tags[0] = "changed"
	if f.Stops[0].Tags[0] != "Dinner" {
		t.Error("Clone shares tag slices with the original")
	}

	f.TotalDuration = 240
	if err := f.Validate(); !errors.Is(err, ErrDurationMismatch) {
		t.Errorf("expected ErrDurationMismatch, got %v", err)
	}

	f.RecomputeTotal()
	f.Stops[1].ID = "a"
	if err := f.Validate(); !errors.Is(err, ErrDuplicateStopID) {
		t.Errorf("expected ErrDuplicateStopID, got %v", err)
	}
}

func TestStopPatch_PartialJSON(t *testing.T) {
	var sw SwapChange
	if err := json.Unmarshal([]byte(`{"stopIndex":0,"newStop":{"name":"X"}}`), &sw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sw.NewStop.Name == nil || *sw.NewStop.Name != "X" {
		t.Fatalf("expected name X, got %+v", sw.NewStop)
	}
	if sw.NewStop.Duration != nil || sw.NewStop.Tags != nil || sw.NewStop.Rating != nil {
		t.Error("expected omitted fields to stay nil")
	}
	if sw.NewStop.IsEmpty() {
		t.Error("patch with a name should not be empty")
	}
}

func TestEditInstruction_IsNoop(t *testing.T) {
	var nilInstr *EditInstruction
	if !nilInstr.IsNoop() {
		t.Error("nil instruction should be a no-op")
	}
	other := &EditInstruction{Action: "reorder", Changes: FlowChanges{Remove: []int{0}}}
	if !other.IsNoop() {
		t.Error("unknown action should be a no-op")
	}
	upd := &EditInstruction{Action: ActionUpdateFlow, Changes: FlowChanges{Remove: []int{0}}}
	if upd.IsNoop() {
		t.Error("update_flow with removals should not be a no-op")
	}
}

func TestEditFlowRequest_Validate(t *testing.T) {
	f := &Flow{}
	tests := []struct {
		name string
		req  EditFlowRequest
		want error
	}{
		{"move up", EditFlowRequest{Flow: f, Action: EditActionMoveUp, StopID: "a"}, nil},
		{"no flow", EditFlowRequest{Action: EditActionRemove, StopID: "a"}, ErrMissingFlow},
		{"bad action", EditFlowRequest{Flow: f, Action: "teleport", StopID: "a"}, ErrUnknownEditAction},
		{"swap without stop", EditFlowRequest{Flow: f, Action: EditActionSwap, StopID: "a"}, ErrMissingReplacement},
		{"missing id", EditFlowRequest{Flow: f, Action: EditActionRemove}, ErrMissingStopID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
