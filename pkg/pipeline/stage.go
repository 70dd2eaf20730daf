// Package pipeline composes named inference stages into a dependency-aware
// graph and executes it against a backend, producing a validated record.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/zen-systems/stageflow/pkg/normalize"
	"github.com/zen-systems/stageflow/pkg/schema"
)

// OutputField declares one field a stage produces: its type, the fallback
// substituted when the stage fails, and the normalization rule applied to
// the raw backend value.
type OutputField struct {
	Name     string           `yaml:"name"`
	Type     schema.FieldType `yaml:"type,omitempty"`
	Fallback any              `yaml:"fallback,omitempty"`

	List       *normalize.ListRule       `yaml:"list,omitempty"`
	Confidence *normalize.ConfidenceRule `yaml:"confidence,omitempty"`
	Category   *normalize.CategoryRule   `yaml:"category,omitempty"`
}

// HasFallback reports whether a fallback value was declared.
func (f *OutputField) HasFallback() bool {
	return f.Fallback != nil
}

// Stage is a single named unit of inference work: a mapping from a fixed
// set of named inputs to a fixed set of named outputs. Immutable once the
// owning graph is built.
type Stage struct {
	Name        string        `yaml:"name"`
	Inputs      []string      `yaml:"inputs"`
	Outputs     []OutputField `yaml:"outputs"`
	Instruction string        `yaml:"instruction,omitempty"`
	Adapter     string        `yaml:"adapter,omitempty"`
	Model       string        `yaml:"model,omitempty"`
}

// Backend is the inference capability a stage delegates to. Call sends
// the named input mapping for one stage and returns the named raw output
// mapping. Implementations may be slow and may fail; the executor, not
// the stage, decides what a failure means for the run.
type Backend interface {
	Call(ctx context.Context, stage *Stage, inputs map[string]string) (map[string]string, error)
}

// Invoke is the blocking form of InvokeContext.
func (s *Stage) Invoke(b Backend, inputs map[string]string) (map[string]string, error) {
	return s.InvokeContext(context.Background(), b, inputs)
}

// InvokeContext runs the stage once against b. It returns the raw output
// mapping or a BackendError; it never substitutes fallback values.
func (s *Stage) InvokeContext(ctx context.Context, b Backend, inputs map[string]string) (map[string]string, error) {
	for _, name := range s.Inputs {
		if _, ok := inputs[name]; !ok {
			return nil, &BackendError{Stage: s.Name, Field: name, Err: fmt.Errorf("missing input")}
		}
	}

	raw, err := b.Call(ctx, s, inputs)
	if err != nil {
		return nil, &BackendError{Stage: s.Name, Err: err}
	}

	for _, field := range s.Outputs {
		if _, ok := raw[field.Name]; !ok {
			return nil, &BackendError{Stage: s.Name, Field: field.Name, Err: fmt.Errorf("backend response missing field")}
		}
	}
	return raw, nil
}

// Normalize coerces one raw output value according to the field's rule.
// The result is typed for the field: string, float64, or []string.
func (f *OutputField) Normalize(raw string) any {
	switch {
	case f.Confidence != nil:
		return f.Confidence.Apply(raw)
	case f.List != nil:
		return f.List.Apply(raw)
	case f.Category != nil:
		return f.Category.Apply(raw)
	}

	switch f.Type {
	case schema.FieldNumber:
		var rule normalize.ConfidenceRule
		return rule.Apply(raw)
	case schema.FieldList:
		var rule normalize.ListRule
		return rule.Apply(raw)
	default:
		return strings.TrimSpace(raw)
	}
}

// FallbackValue returns the declared fallback coerced to the field's
// type. Manifest-loaded fallbacks arrive as loosely-typed YAML values.
func (f *OutputField) FallbackValue() (any, error) {
	switch v := f.Fallback.(type) {
	case nil:
		return nil, nil
	case string:
		if f.Type == schema.FieldNumber {
			var rule normalize.ConfidenceRule
			return rule.Apply(v), nil
		}
		if f.Type == schema.FieldList {
			var rule normalize.ListRule
			return rule.Apply(v), nil
		}
		return v, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("fallback list for %s contains %T", f.Name, item)
			}
			items = append(items, s)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported fallback type %T for %s", f.Fallback, f.Name)
	}
}

// renderInput converts a normalized value back to the string form a
// downstream stage consumes.
func renderInput(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (s *Stage) validate() error {
	if s.Name == "" {
		return fmt.Errorf("stage name is required")
	}
	if len(s.Inputs) == 0 {
		return fmt.Errorf("stage %s must declare at least one input", s.Name)
	}
	if len(s.Outputs) == 0 {
		return fmt.Errorf("stage %s must declare at least one output", s.Name)
	}
	seen := make(map[string]struct{})
	for _, field := range s.Outputs {
		if field.Name == "" {
			return fmt.Errorf("stage %s has an output with no name", s.Name)
		}
		if _, ok := seen[field.Name]; ok {
			return fmt.Errorf("stage %s duplicates output %s", s.Name, field.Name)
		}
		seen[field.Name] = struct{}{}
		if _, err := field.FallbackValue(); err != nil {
			return fmt.Errorf("stage %s: %w", s.Name, err)
		}
	}
	return nil
}
