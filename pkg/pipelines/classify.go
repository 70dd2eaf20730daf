package pipelines

import (
	"github.com/zen-systems/stageflow/pkg/normalize"
	"github.com/zen-systems/stageflow/pkg/pipeline"
	"github.com/zen-systems/stageflow/pkg/schema"
)

// DocumentClassification returns a single-stage pipeline classifying a
// document into a category with a bounded confidence score.
func DocumentClassification() *pipeline.Definition {
	return &pipeline.Definition{
		Name:        "document-classification",
		Description: "Document categorization with a normalized confidence score.",
		Inputs:      []string{"document"},
		Stages: []*pipeline.Stage{
			{
				Name:        "classify",
				Inputs:      []string{"document"},
				Instruction: "Classify the document into a category and state your confidence.",
				Outputs: []pipeline.OutputField{
					{Name: "category", Type: schema.FieldString, Fallback: "general"},
					{
						Name:       "confidence",
						Type:       schema.FieldNumber,
						Fallback:   normalize.DefaultConfidence,
						Confidence: &normalize.ConfidenceRule{},
					},
				},
			},
		},
		Output: &schema.Definition{
			Name: "classification",
			Fields: []schema.FieldSpec{
				{Name: "category", Type: schema.FieldString, Required: true},
				{Name: "confidence", Type: schema.FieldNumber, Min: schema.Bound(0), Max: schema.Bound(1)},
			},
		},
	}
}

// EntityTypes classifies each extracted entity into a coarse type using
// the keyword heuristic. Best-effort: tokens matching no category are
// labeled "Other".
func EntityTypes(entities []string) []string {
	rule := normalize.EntityTypeRule()
	types := make([]string, 0, len(entities))
	for _, entity := range entities {
		types = append(types, rule.Apply(entity))
	}
	return types
}

// All returns every built-in pipeline definition.
func All() []*pipeline.Definition {
	return []*pipeline.Definition{
		EmailAnalysis(),
		CodeAnalysis(),
		DocumentClassification(),
	}
}

// ByName returns the built-in definition with the given name, or nil.
func ByName(name string) *pipeline.Definition {
	for _, def := range All() {
		if def.Name == name {
			return def
		}
	}
	return nil
}
