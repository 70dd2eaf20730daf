package pipelines

import (
	"github.com/zen-systems/stageflow/pkg/pipeline"
	"github.com/zen-systems/stageflow/pkg/schema"
)

// CodeAnalysis returns the four-stage code review pipeline: understand
// the code, then find issues and generate tests concurrently, then
// suggest fixes from the issues found.
func CodeAnalysis() *pipeline.Definition {
	return &pipeline.Definition{
		Name:        "code-analysis",
		Description: "Code quality review producing a structured feedback record.",
		Inputs:      []string{"code"},
		Stages: []*pipeline.Stage{
			{
				Name:        "understand",
				Inputs:      []string{"code"},
				Instruction: "Describe what this code does in plain language.",
				Outputs: []pipeline.OutputField{
					{Name: "description", Type: schema.FieldString, Fallback: "Unable to describe the code."},
				},
			},
			{
				Name:        "find_issues",
				Inputs:      []string{"code", "description"},
				Instruction: "Identify bugs, edge cases, and quality problems in the code.",
				Outputs: []pipeline.OutputField{
					{Name: "issues", Type: schema.FieldString, Fallback: "No issues identified."},
				},
			},
			{
				Name:        "generate_tests",
				Inputs:      []string{"code", "description"},
				Instruction: "Write test cases covering the code's behavior and edge cases.",
				Outputs: []pipeline.OutputField{
					{Name: "tests", Type: schema.FieldString, Fallback: "No tests generated."},
				},
			},
			{
				Name:        "suggest_fixes",
				Inputs:      []string{"code", "issues"},
				Instruction: "Suggest concrete improvements addressing the issues found.",
				Outputs: []pipeline.OutputField{
					{Name: "suggestions", Type: schema.FieldString, Fallback: "No suggestions available."},
				},
			},
		},
		Output: &schema.Definition{
			Name: "code_analysis",
			Fields: []schema.FieldSpec{
				{Name: "description", Type: schema.FieldString, Required: true},
				{Name: "issues", Type: schema.FieldString, Required: true},
				{Name: "suggestions", Type: schema.FieldString, Required: true},
				{Name: "tests", Type: schema.FieldString, Required: true},
			},
		},
	}
}
