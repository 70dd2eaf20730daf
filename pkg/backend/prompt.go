package backend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zen-systems/stageflow/pkg/pipeline"
)

// renderPrompt builds the field-labeled prompt for one stage invocation.
// Inputs are rendered in sorted order so identical invocations produce
// identical prompts, which keeps response caching effective.
func renderPrompt(stage *pipeline.Stage, inputs map[string]string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Task: %s.\n", stage.Name)
	if stage.Instruction != "" {
		sb.WriteString(stage.Instruction)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	names := make([]string, 0, len(stage.Inputs))
	names = append(names, stage.Inputs...)
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "%s:\n%s\n\n", name, inputs[name])
	}

	outputs := make([]string, 0, len(stage.Outputs))
	for _, field := range stage.Outputs {
		outputs = append(outputs, field.Name)
	}
	fmt.Fprintf(&sb, "Respond with one line per field, formatted as \"field: value\".\n")
	fmt.Fprintf(&sb, "Fields: %s\n", strings.Join(outputs, ", "))

	return sb.String()
}

// parseResponse decodes a completion into the stage's declared output
// fields. A fenced or bare JSON object is accepted first; otherwise the
// labeled-line format is scanned, with unlabeled content assigned to the
// stage's single output when it declares exactly one.
func parseResponse(content string, stage *pipeline.Stage) (map[string]string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, fmt.Errorf("stage %s: empty completion", stage.Name)
	}

	if outputs, ok := parseJSONResponse(trimmed, stage); ok {
		return outputs, nil
	}

	outputs := parseLabeledLines(trimmed, stage)

	if len(outputs) == 0 && len(stage.Outputs) == 1 {
		outputs[stage.Outputs[0].Name] = trimmed
	}
	return outputs, nil
}

func parseJSONResponse(content string, stage *pipeline.Stage) (map[string]string, bool) {
	stripped := strings.TrimSpace(content)
	stripped = strings.TrimPrefix(stripped, "```json")
	stripped = strings.TrimPrefix(stripped, "```")
	stripped = strings.TrimSuffix(stripped, "```")
	stripped = strings.TrimSpace(stripped)
	if !strings.HasPrefix(stripped, "{") {
		return nil, false
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(stripped), &raw); err != nil {
		return nil, false
	}

	outputs := make(map[string]string)
	for _, field := range stage.Outputs {
		value, ok := raw[field.Name]
		if !ok {
			continue
		}
		outputs[field.Name] = stringifyJSON(value)
	}
	return outputs, len(outputs) > 0
}

func stringifyJSON(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringifyJSON(item))
		}
		return strings.Join(parts, ", ")
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

// parseLabeledLines scans "field: value" lines. Lines that open no known
// field continue the previous one, so multi-line values survive.
func parseLabeledLines(content string, stage *pipeline.Stage) map[string]string {
	declared := make(map[string]string, len(stage.Outputs))
	for _, field := range stage.Outputs {
		declared[strings.ToLower(field.Name)] = field.Name
	}

	outputs := make(map[string]string)
	current := ""
	for _, line := range strings.Split(content, "\n") {
		label, rest, found := strings.Cut(line, ":")
		if found {
			if name, ok := declared[strings.ToLower(strings.TrimSpace(label))]; ok {
				outputs[name] = strings.TrimSpace(rest)
				current = name
				continue
			}
		}
		if current != "" {
			outputs[current] = strings.TrimSpace(outputs[current] + "\n" + line)
		}
	}
	return outputs
}
