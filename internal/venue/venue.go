// Package venue searches a local-business provider for candidates that can fill a plan step.
package venue

import (
	"context"
	"strings"
)

// Category is one provider category attached to a venue.
type Category struct {
	Alias string `json:"alias"`
	Title string `json:"title"`
}

// Candidate is a venue returned by a search.
type Candidate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Rating      float64    `json:"rating"`
	Price       string     `json:"price"`
	Categories  []Category `json:"categories"`
	URL         string     `json:"url"`
	ImageURL    string     `json:"image_url"`
	ReviewCount int        `json:"review_count"`
}

// PrimaryCategory returns the title of the first category, or "".
func (c Candidate) PrimaryCategory() string {
	if len(c.Categories) == 0 {
		return ""
	}
	return strings.TrimSpace(c.Categories[0].Title)
}

// Query describes one search.
type Query struct {
	Location    string
	Category    string
	Term        string
	PriceFilter string
}

// Searcher finds candidates for a query. Implementations never fail: provider errors,
// timeouts and empty results all come back as an empty slice.
type Searcher interface {
	Search(ctx context.Context, q Query) []Candidate
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, q Query) []Candidate

func (f SearcherFunc) Search(ctx context.Context, q Query) []Candidate {
	return f(ctx, q)
}
