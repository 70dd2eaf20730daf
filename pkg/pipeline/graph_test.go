package pipeline

import (
	"errors"
	"testing"

	"github.com/zen-systems/stageflow/pkg/schema"
)

func analysisDef() *Definition {
	return &Definition{
		Name:   "analysis",
		Inputs: []string{"text"},
		Stages: []*Stage{
			{
				Name:    "summarize",
				Inputs:  []string{"text"},
				Outputs: []OutputField{{Name: "summary", Type: schema.FieldString, Fallback: "no summary"}},
			},
			{
				Name:    "extract",
				Inputs:  []string{"text"},
				Outputs: []OutputField{{Name: "entities", Type: schema.FieldList, Fallback: []string{"customer"}}},
			},
			{
				Name:    "score",
				Inputs:  []string{"summary", "entities"},
				Outputs: []OutputField{{Name: "confidence", Type: schema.FieldNumber, Fallback: 0.5}},
			},
		},
		Output: &schema.Definition{
			Name: "analysis",
			Fields: []schema.FieldSpec{
				{Name: "summary", Type: schema.FieldString, Required: true},
				{Name: "entities", Type: schema.FieldList},
				{Name: "confidence", Type: schema.FieldNumber, Min: schema.Bound(0), Max: schema.Bound(1)},
			},
		},
	}
}

func TestBuildLayers(t *testing.T) {
	graph, err := Build(analysisDef())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	layers := graph.Layers()
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers))
	}
	if len(layers[0]) != 2 {
		t.Fatalf("expected 2 concurrent stages in layer 0, got %d", len(layers[0]))
	}
	if layers[1][0].Name != "score" {
		t.Fatalf("expected score in layer 1, got %s", layers[1][0].Name)
	}
}

func TestBuildUnresolvedInput(t *testing.T) {
	def := analysisDef()
	def.Stages[2].Inputs = []string{"summary", "sentiment"}

	_, err := Build(def)
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GraphError, got %v", err)
	}
	if gerr.Field != "sentiment" || gerr.Stage != "score" {
		t.Fatalf("error not attributed: %v", gerr)
	}
}

func TestBuildAmbiguousProducer(t *testing.T) {
	def := analysisDef()
	def.Stages[1].Outputs = []OutputField{{Name: "summary", Type: schema.FieldString}}

	_, err := Build(def)
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GraphError, got %v", err)
	}
	if gerr.Field != "summary" {
		t.Fatalf("error not attributed to the ambiguous field: %v", gerr)
	}
}

func TestBuildExternalConflict(t *testing.T) {
	def := analysisDef()
	def.Inputs = []string{"text", "summary"}

	_, err := Build(def)
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GraphError, got %v", err)
	}
}

func TestBuildCycle(t *testing.T) {
	def := &Definition{
		Name:   "cyclic",
		Inputs: []string{"text"},
		Stages: []*Stage{
			{
				Name:    "a",
				Inputs:  []string{"text", "beta"},
				Outputs: []OutputField{{Name: "alpha", Type: schema.FieldString}},
			},
			{
				Name:    "b",
				Inputs:  []string{"alpha"},
				Outputs: []OutputField{{Name: "beta", Type: schema.FieldString}},
			},
		},
		Output: &schema.Definition{
			Name:   "cyclic",
			Fields: []schema.FieldSpec{{Name: "beta", Type: schema.FieldString}},
		},
	}

	_, err := Build(def)
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GraphError, got %v", err)
	}
	if gerr.Reason != "dependency cycle detected" {
		t.Fatalf("unexpected reason: %q", gerr.Reason)
	}
}

func TestBuildSchemaFieldWithoutProducer(t *testing.T) {
	def := analysisDef()
	def.Output.Fields = append(def.Output.Fields, schema.FieldSpec{Name: "priority", Type: schema.FieldString})

	_, err := Build(def)
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GraphError, got %v", err)
	}
	if gerr.Field != "priority" {
		t.Fatalf("error not attributed: %v", gerr)
	}
}

func TestBuildDuplicateStageName(t *testing.T) {
	def := analysisDef()
	def.Stages[1].Name = "summarize"
	def.Stages[1].Outputs = []OutputField{{Name: "entities", Type: schema.FieldList}}

	if _, err := Build(def); err == nil {
		t.Fatalf("expected duplicate stage name to fail construction")
	}
}
