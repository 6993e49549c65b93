package flow

import (
	"github.com/BTreeMap/Kelp/internal/itinerary"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/util"
)

// fallbackStops is the fixed itinerary served when no step produced a venue.
var fallbackStops = []models.FlowStop{
	{
		ID:       "fallback-1",
		Name:     "Popular Local Spot",
		Category: "Activity",
		Rating:   4.5,
		Price:    "$$",
		Reason:   "A great starting point based on your preferences",
		Duration: 60,
		Tags:     []string{"Popular", "Recommended"},
		ImageURL: "https://images.unsplash.com/photo-1517248135467-4c7edcad34c4?w=400&h=300&fit=crop",
	},
	{
		ID:       "fallback-2",
		Name:     "Cozy Bar & Lounge",
		Category: "Bar",
		Rating:   4.3,
		Price:    "$$",
		Reason:   "Perfect atmosphere to continue your outing",
		Duration: 60,
		Tags:     []string{"Cozy", "Great Drinks"},
		ImageURL: "https://images.unsplash.com/photo-1470337458703-46ad1756a187?w=400&h=300&fit=crop",
	},
}

// FallbackFlow returns the two-stop placeholder flow timed from the scenario's anchor hour.
func FallbackFlow(sc models.Scenario) models.Flow {
	f := models.Flow{
		ID:          util.GenerateFlowID(),
		Stops:       make([]models.FlowStop, len(fallbackStops)),
		BudgetRange: sc.Budget.Range(),
	}
	for i, s := range fallbackStops {
		f.Stops[i] = s.Clone()
	}
	itinerary.Reschedule(f.Stops, sc.TimeWindow.AnchorHour()*60)
	f.RecomputeTotal()
	return f
}
