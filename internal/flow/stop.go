package flow

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/venue"
)

const (
	defaultRating = 4.0
	defaultPrice  = "$$"
	defaultVibe   = "great"
	topRatedTag   = "Top Rated"
	topRatedFloor = 4.5
)

// reasonTemplates receive rating, review count, category, activity type and vibe, in that order.
var reasonTemplates = []func(rating string, reviews int, category, activity, vibe string) string{
	func(rating string, reviews int, category, _, _ string) string {
		return fmt.Sprintf("Top-rated %s with %s★ from %d+ reviews", category, rating, reviews)
	},
	func(rating string, _ int, _, activity, vibe string) string {
		return fmt.Sprintf("Perfect %s spot – %s★ rating, known for %s atmosphere", activity, rating, vibe)
	},
	func(rating string, _ int, category, activity, _ string) string {
		return fmt.Sprintf("Locals love this %s – %s★ and ideal for your %s", category, rating, activity)
	},
	func(_ string, reviews int, _, activity, _ string) string {
		return fmt.Sprintf("Highly recommended for %s – %d+ happy visitors", activity, reviews)
	},
}

func (a *Assembler) buildStop(c venue.Candidate, step models.PlanStep, vibes []string, index int) models.FlowStop {
	id := c.ID
	if id == "" {
		id = fmt.Sprintf("stop-%d", index)
	}
	category := c.PrimaryCategory()
	if category == "" {
		category = step.Type
	}
	rating := c.Rating
	if rating == 0 {
		rating = defaultRating
	}
	price := c.Price
	if price == "" {
		price = defaultPrice
	}
	return models.FlowStop{
		ID:       id,
		Name:     c.Name,
		Category: category,
		Rating:   rating,
		Price:    price,
		Reason:   a.reason(rating, c.ReviewCount, category, step.Type, vibes),
		Duration: step.Duration,
		Tags:     buildTags(c, step, vibes),
		YelpURL:  c.URL,
		ImageURL: c.ImageURL,
	}
}

func (a *Assembler) reason(rating float64, reviews int, category, activity string, vibes []string) string {
	vibe := defaultVibe
	if len(vibes) > 0 && strings.TrimSpace(vibes[0]) != "" {
		vibe = strings.TrimSpace(vibes[0])
	}
	tmpl := reasonTemplates[a.randIndex(len(reasonTemplates))]
	return tmpl(strconv.FormatFloat(rating, 'f', -1, 64), reviews, strings.ToLower(category), strings.ToLower(activity), vibe)
}

// buildTags returns the activity type, the venue category when it differs, a top-rated marker
// and the first vibe, capped at models.MaxStopTags.
func buildTags(c venue.Candidate, step models.PlanStep, vibes []string) []string {
	tags := []string{step.Type}
	if title := c.PrimaryCategory(); title != "" && title != step.Type {
		tags = append(tags, title)
	}
	if c.Rating >= topRatedFloor {
		tags = append(tags, topRatedTag)
	}
	if len(vibes) > 0 {
		if v := capitalize(strings.TrimSpace(vibes[0])); v != "" {
			tags = append(tags, v)
		}
	}
	if len(tags) > models.MaxStopTags {
		tags = tags[:models.MaxStopTags]
	}
	return tags
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
