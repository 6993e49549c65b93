// Package taxonomy holds the replaceable category table shared by the plan decomposer and
// the venue search adapter: canonical category codes, aliases, attraction categories, the
// keyword rules of the deterministic decomposer and its per-window templates.
package taxonomy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BTreeMap/Kelp/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed default_taxonomy.yaml
var defaultTaxonomy []byte

// TemplateDefault is the template key used for windows without their own template.
const TemplateDefault = "default"

var (
	ErrNoRules     = errors.New("taxonomy has no keyword rules")
	ErrNoTemplates = errors.New("taxonomy has no default template")
)

// Step is a plan step as written in the table.
type Step struct {
	Type     string `yaml:"type"`
	Category string `yaml:"category"`
	Term     string `yaml:"term"`
	Duration int    `yaml:"duration"`
}

// Rule maps description keywords to a plan step.
type Rule struct {
	Step     `yaml:",inline"`
	Keywords []string `yaml:"keywords"`
	Unless   []string `yaml:"unless"`

	match  *regexp.Regexp
	unless *regexp.Regexp
}

// Table is one loaded taxonomy. It is immutable once returned by Parse.
type Table struct {
	Attractions []string          `yaml:"attractions"`
	Vocabulary  []string          `yaml:"vocabulary"`
	Aliases     map[string]string `yaml:"aliases"`
	Rules       []Rule            `yaml:"rules"`
	Templates   map[string][]Step `yaml:"templates"`

	attractions map[string]struct{}
	known       map[string]struct{}
}

// Default returns the embedded table. It panics only if the embedded file is broken.
func Default() *Table {
	t, err := Parse(defaultTaxonomy)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy is invalid: %v", err))
	}
	return t
}

// LoadFile parses a taxonomy from disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid taxonomy file %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a YAML taxonomy.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode taxonomy: %w", err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) compile() error {
	if len(t.Rules) == 0 {
		return ErrNoRules
	}
	if len(t.Templates[TemplateDefault]) == 0 {
		return ErrNoTemplates
	}

	t.attractions = make(map[string]struct{}, len(t.Attractions))
	for _, a := range t.Attractions {
		t.attractions[normalize(a)] = struct{}{}
	}
	t.known = make(map[string]struct{}, len(t.Vocabulary))
	for _, v := range t.Vocabulary {
		t.known[normalize(v)] = struct{}{}
	}
	aliases := make(map[string]string, len(t.Aliases))
	for k, v := range t.Aliases {
		aliases[normalize(k)] = normalize(v)
	}
	t.Aliases = aliases

	for i := range t.Rules {
		r := &t.Rules[i]
		if err := validateStep(r.Step); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %d (%s): no keywords", i, r.Type)
		}
		r.match = keywordPattern(r.Keywords)
		if len(r.Unless) > 0 {
			r.unless = keywordPattern(r.Unless)
		}
	}
	for window, steps := range t.Templates {
		if len(steps) > models.MaxPlanSteps {
			return fmt.Errorf("template %q has more than %d steps", window, models.MaxPlanSteps)
		}
		for i, s := range steps {
			if err := validateStep(s); err != nil {
				return fmt.Errorf("template %q step %d: %w", window, i, err)
			}
		}
	}
	return nil
}

func validateStep(s Step) error {
	if s.Type == "" || s.Category == "" {
		return errors.New("type and category are required")
	}
	if s.Duration <= 0 {
		return fmt.Errorf("%s: duration must be positive", s.Type)
	}
	return nil
}

// keywordPattern matches any keyword as a whole word, allowing a plural "s".
func keywordPattern(keywords []string) *regexp.Regexp {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		words := strings.Fields(strings.ToLower(k))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `\s+`))
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(parts, "|") + `)s?\b`)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsAttraction reports whether venues in the category are not price-tiered.
func (t *Table) IsAttraction(category string) bool {
	_, ok := t.attractions[normalize(category)]
	return ok
}

// Canonical maps an alias to its canonical code. Unknown codes pass through lower-cased so a
// provider can still try them.
func (t *Table) Canonical(category string) string {
	c := normalize(category)
	if mapped, ok := t.Aliases[c]; ok {
		return mapped
	}
	return c
}

// Known reports whether the code is part of the vocabulary.
func (t *Table) Known(category string) bool {
	_, ok := t.known[normalize(category)]
	return ok
}

// Match returns one plan step per rule whose keywords appear in the description, in rule order.
func (t *Table) Match(description string) []models.PlanStep {
	desc := strings.ToLower(description)
	var steps []models.PlanStep
	for _, r := range t.Rules {
		if !r.match.MatchString(desc) {
			continue
		}
		if r.unless != nil && r.unless.MatchString(desc) {
			continue
		}
		steps = append(steps, r.Step.planStep())
	}
	return steps
}

// Template returns the canned plan for a time window.
func (t *Table) Template(window models.TimeWindow) []models.PlanStep {
	steps, ok := t.Templates[string(window)]
	if !ok {
		steps = t.Templates[TemplateDefault]
	}
	out := make([]models.PlanStep, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.planStep())
	}
	return out
}

func (s Step) planStep() models.PlanStep {
	return models.PlanStep{Type: s.Type, Category: s.Category, SearchTerm: s.Term, Duration: s.Duration}
}
