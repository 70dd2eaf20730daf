// Package pipelines ships ready-made pipeline definitions for common
// text-analysis tasks.
package pipelines

import (
	"github.com/zen-systems/stageflow/pkg/normalize"
	"github.com/zen-systems/stageflow/pkg/pipeline"
	"github.com/zen-systems/stageflow/pkg/schema"
)

// Sentiment and priority vocabularies for the email pipeline.
var (
	SentimentLabels = []string{"positive", "neutral", "negative"}
	PriorityLabels  = []string{"low", "medium", "high"}
)

// EmailAnalysis returns the five-stage email triage pipeline: summarize,
// extract entities, and score sentiment directly from the message, then
// determine priority and suggest a response from the earlier results.
func EmailAnalysis() *pipeline.Definition {
	return &pipeline.Definition{
		Name:        "email-analysis",
		Description: "Multi-stage email triage producing a structured analysis record.",
		Inputs:      []string{"email"},
		Stages: []*pipeline.Stage{
			{
				Name:        "summarize",
				Inputs:      []string{"email"},
				Instruction: "Summarize the email in two or three sentences.",
				Outputs: []pipeline.OutputField{
					{Name: "summary", Type: schema.FieldString, Fallback: "Unable to summarize the message."},
				},
			},
			{
				Name:        "extract_entities",
				Inputs:      []string{"email"},
				Instruction: "List the named entities mentioned in the email, separated by commas.",
				Outputs: []pipeline.OutputField{
					{
						Name:     "entities",
						Type:     schema.FieldList,
						Fallback: []string{"customer", "product", "issue"},
						List:     &normalize.ListRule{Delimiters: []string{",", ";"}, MaxItems: 5},
					},
				},
			},
			{
				Name:        "analyze_sentiment",
				Inputs:      []string{"email"},
				Instruction: "Classify the email's sentiment as positive, neutral, or negative.",
				Outputs: []pipeline.OutputField{
					{
						Name:     "sentiment",
						Type:     schema.FieldString,
						Fallback: "negative",
						Category: &normalize.CategoryRule{
							Categories: []normalize.Category{
								{Label: "positive", Keywords: []string{"positive", "happy", "satisfied"}},
								{Label: "negative", Keywords: []string{"negative", "angry", "frustrated", "unhappy"}},
								{Label: "neutral", Keywords: []string{"neutral", "mixed"}},
							},
							Fallthrough: "neutral",
						},
					},
				},
			},
			{
				Name:        "determine_priority",
				Inputs:      []string{"summary", "sentiment"},
				Instruction: "Given the summary and sentiment, rate the priority as low, medium, or high.",
				Outputs: []pipeline.OutputField{
					{
						Name:     "priority",
						Type:     schema.FieldString,
						Fallback: "high",
						Category: &normalize.CategoryRule{
							Categories: []normalize.Category{
								{Label: "high", Keywords: []string{"high", "urgent", "critical", "immediate"}},
								{Label: "low", Keywords: []string{"low", "minor", "trivial"}},
								{Label: "medium", Keywords: []string{"medium", "moderate", "normal"}},
							},
							Fallthrough: "medium",
						},
					},
				},
			},
			{
				Name:        "suggest_response",
				Inputs:      []string{"summary", "sentiment", "priority"},
				Instruction: "Draft a short, courteous reply addressing the summarized concern.",
				Outputs: []pipeline.OutputField{
					{
						Name:     "suggested_response",
						Type:     schema.FieldString,
						Fallback: "Thank you for reaching out. We understand your concern and will follow up shortly.",
					},
				},
			},
		},
		Output: &schema.Definition{
			Name: "email_analysis",
			Fields: []schema.FieldSpec{
				{Name: "summary", Type: schema.FieldString, Required: true},
				{Name: "entities", Type: schema.FieldList, Required: true},
				{Name: "sentiment", Type: schema.FieldString, Required: true, OneOf: SentimentLabels},
				{Name: "priority", Type: schema.FieldString, Required: true, OneOf: PriorityLabels},
				{Name: "suggested_response", Type: schema.FieldString, Required: true},
			},
		},
	}
}
