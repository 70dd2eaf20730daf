// Package normalize converts raw model output into bounded, validated
// field values. Every rule is pure and total: malformed input degrades to
// a documented default instead of failing the producing stage.
package normalize

import (
	"strconv"
	"strings"
)

// DefaultConfidence is substituted when a confidence value matches no
// known format.
const DefaultConfidence = 0.8

// DefaultConfidenceLabels maps qualitative confidence labels to fixed
// fractions. Pipelines may override the mapping per field.
var DefaultConfidenceLabels = map[string]float64{
	"low":       0.5,
	"medium":    0.7,
	"high":      0.9,
	"very high": 0.9,
}

// ListRule splits a delimited string into a clean list. Alternate
// delimiters are unified to the first before splitting.
type ListRule struct {
	Delimiters []string `yaml:"delimiters,omitempty"`
	MaxItems   int      `yaml:"max_items,omitempty"`
}

// Apply splits raw into trimmed, non-empty segments in original order,
// capped to MaxItems when set.
func (r ListRule) Apply(raw string) []string {
	delims := r.Delimiters
	if len(delims) == 0 {
		delims = []string{",", ";"}
	}

	canonical := delims[0]
	unified := raw
	for _, d := range delims[1:] {
		unified = strings.ReplaceAll(unified, d, canonical)
	}

	var items []string
	for _, part := range strings.Split(unified, canonical) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		items = append(items, part)
		if r.MaxItems > 0 && len(items) == r.MaxItems {
			break
		}
	}
	return items
}

// ConfidenceRule normalizes a confidence value to a fraction in [0,1].
//
// Accepted forms: a decimal already in range, a percentage string
// ("95%"), a qualitative label ("high"), or a bare number greater than 1
// reinterpreted as a percentage. Anything else yields Default.
type ConfidenceRule struct {
	Labels  map[string]float64 `yaml:"labels,omitempty"`
	Default float64            `yaml:"default,omitempty"`
}

// Apply parses raw into a fraction and clamps it to [0,1].
func (r ConfidenceRule) Apply(raw string) float64 {
	labels := r.Labels
	if labels == nil {
		labels = DefaultConfidenceLabels
	}
	fallback := r.Default
	if fallback == 0 {
		fallback = DefaultConfidence
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return clamp01(fallback)
	}

	if frac, ok := labels[strings.ToLower(s)]; ok {
		return clamp01(frac)
	}

	if strings.HasSuffix(s, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			return clamp01(fallback)
		}
		return clamp01(pct / 100)
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return clamp01(fallback)
	}
	if val > 1 {
		// Percentage given without the % sign.
		val /= 100
	}
	return clamp01(val)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Category pairs a label with the keywords that select it.
type Category struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// CategoryRule classifies a short token by keyword lookup. Categories are
// tested in declaration order and the first match wins; a token matching
// none receives Fallthrough.
//
// This is deliberate pattern matching, not a model call. Treat the result
// as best-effort, never authoritative.
type CategoryRule struct {
	Categories  []Category `yaml:"categories"`
	Fallthrough string     `yaml:"fallthrough,omitempty"`
}

// Apply returns the first matching category label for token.
func (r CategoryRule) Apply(token string) string {
	lower := strings.ToLower(token)
	for _, cat := range r.Categories {
		for _, kw := range cat.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return cat.Label
			}
		}
	}
	if r.Fallthrough != "" {
		return r.Fallthrough
	}
	return "Other"
}

// EntityTypeRule returns the default rule for classifying extracted
// entities into coarse types.
func EntityTypeRule() CategoryRule {
	return CategoryRule{
		Categories: []Category{
			{Label: "Organization", Keywords: []string{"inc", "corp", "company", "llc", "organization"}},
			{Label: "Technology", Keywords: []string{"framework", "library", "api", "programming", "code", "schema", "system"}},
			{Label: "Concept", Keywords: []string{"optimization", "execution", "process", "method"}},
		},
		Fallthrough: "Other",
	}
}
