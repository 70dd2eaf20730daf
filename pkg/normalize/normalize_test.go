package normalize

import (
	"reflect"
	"testing"
)

func TestListRuleUnifiesDelimiters(t *testing.T) {
	rule := ListRule{Delimiters: []string{",", ";"}}

	got := rule.Apply("customer, product; issue")
	want := []string{"customer", "product", "issue"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Apply = %v, want %v", got, want)
	}
}

func TestListRuleDropsEmptySegmentsAndCaps(t *testing.T) {
	rule := ListRule{Delimiters: []string{",", ";"}, MaxItems: 2}

	got := rule.Apply("a,, b ; c,")
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Apply = %v, want %v", got, want)
	}
}

func TestListRuleDefaultDelimiters(t *testing.T) {
	var rule ListRule
	got := rule.Apply("x; y, z")
	want := []string{"x", "y", "z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Apply = %v, want %v", got, want)
	}
}

func TestConfidenceRule(t *testing.T) {
	var rule ConfidenceRule

	cases := []struct {
		raw  string
		want float64
	}{
		{"0.42", 0.42},
		{"95%", 0.95},
		{" 95 % ", 0.95},
		{"high", 0.9},
		{"Very High", 0.9},
		{"medium", 0.7},
		{"low", 0.5},
		{"120", 1.0}, // 120/100 = 1.2, clamped
		{"85", 0.85},
		{"n/a", 0.8},
		{"", 0.8},
		{"-0.3", 0},
	}

	for _, tc := range cases {
		if got := rule.Apply(tc.raw); got != tc.want {
			t.Errorf("Apply(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestConfidenceRuleIdempotent(t *testing.T) {
	var rule ConfidenceRule

	once := rule.Apply("0.42")
	twice := rule.Apply("0.42")
	if once != twice || once != 0.42 {
		t.Fatalf("rule is not idempotent: %v vs %v", once, twice)
	}
}

func TestConfidenceRuleCustomLabelsAndDefault(t *testing.T) {
	rule := ConfidenceRule{
		Labels:  map[string]float64{"certain": 1.0},
		Default: 0.5,
	}

	if got := rule.Apply("certain"); got != 1.0 {
		t.Fatalf("Apply(certain) = %v, want 1.0", got)
	}
	// Custom label table replaces the default vocabulary.
	if got := rule.Apply("high"); got != 0.5 {
		t.Fatalf("Apply(high) = %v, want default 0.5", got)
	}
}

func TestCategoryRulePriorityOrder(t *testing.T) {
	rule := EntityTypeRule()

	cases := []struct {
		token string
		want  string
	}{
		{"Acme Corp", "Organization"},
		{"DSPy framework", "Technology"},
		{"query optimization", "Concept"},
		{"John Smith", "Other"},
		// "company code" hits Organization first even though "code" is a
		// Technology keyword.
		{"company code", "Organization"},
	}

	for _, tc := range cases {
		if got := rule.Apply(tc.token); got != tc.want {
			t.Errorf("Apply(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}

func TestCategoryRuleFallthrough(t *testing.T) {
	rule := CategoryRule{
		Categories:  []Category{{Label: "Animal", Keywords: []string{"cat", "dog"}}},
		Fallthrough: "Unknown",
	}

	if got := rule.Apply("rock"); got != "Unknown" {
		t.Fatalf("Apply(rock) = %q, want Unknown", got)
	}
}
