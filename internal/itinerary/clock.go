package itinerary

import (
	"strings"
	"time"

	"github.com/BTreeMap/Kelp/internal/models"
)

const (
	clockLayout   = "3:04 PM"
	minutesPerDay = 24 * 60
)

// FormatClock renders minutes after midnight as "h:mm AM/PM", wrapping past midnight.
func FormatClock(minutes int) string {
	minutes %= minutesPerDay
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return time.Date(2000, 1, 1, 0, minutes, 0, 0, time.UTC).Format(clockLayout)
}

// ParseClock reads an "h:mm AM/PM" time back into minutes after midnight.
func ParseClock(s string) (int, bool) {
	t, err := time.Parse(clockLayout, strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// Reschedule sets stop times to start plus the running sum of prior durations.
func Reschedule(stops []models.FlowStop, start int) {
	at := start
	for i := range stops {
		stops[i].Time = FormatClock(at)
		at += stops[i].Duration
	}
}
