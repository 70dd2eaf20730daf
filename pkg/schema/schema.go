// Package schema defines the validated record shape a pipeline produces.
package schema

import (
	"encoding/json"
	"fmt"
)

// FieldType identifies the value type a field holds.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldList   FieldType = "list"
)

// FieldSpec declares one field of a record: its type and the bounds a
// value must satisfy on assembly.
type FieldSpec struct {
	Name     string    `yaml:"name"`
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required,omitempty"`
	Min      *float64  `yaml:"min,omitempty"`
	Max      *float64  `yaml:"max,omitempty"`
	OneOf    []string  `yaml:"one_of,omitempty"`
}

// Definition is the declared shape of a pipeline's final record.
type Definition struct {
	Name   string      `yaml:"name"`
	Fields []FieldSpec `yaml:"fields"`
}

// Field looks up a field spec by name.
func (d *Definition) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Validate checks the definition itself for errors.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("schema %s must declare at least one field", d.Name)
	}
	seen := make(map[string]struct{})
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s has a field with no name", d.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("schema %s duplicates field %s", d.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Type {
		case FieldString, FieldNumber, FieldList:
		default:
			return fmt.Errorf("schema %s field %s has unknown type %q", d.Name, f.Name, f.Type)
		}
		if (f.Min != nil || f.Max != nil) && f.Type != FieldNumber {
			return fmt.Errorf("schema %s field %s declares bounds on a non-number", d.Name, f.Name)
		}
		if len(f.OneOf) > 0 && f.Type != FieldString {
			return fmt.Errorf("schema %s field %s declares a vocabulary on a non-string", d.Name, f.Name)
		}
	}
	return nil
}

// ValidationError reports a record that violates its declared bounds.
// In normal operation the executor never produces one: the normalizer
// clamps and defaults values first, so a validation failure signals a
// pipeline definition bug rather than a transient condition.
type ValidationError struct {
	Schema string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema %s: field %s: %s", e.Schema, e.Field, e.Reason)
}

// Record is an immutable validated record assembled by a pipeline run.
type Record struct {
	def    *Definition
	values map[string]any
}

// NewRecord validates values against def and assembles a record.
// Values must be string, float64, or []string per the field type.
func NewRecord(def *Definition, values map[string]any) (*Record, error) {
	if def == nil {
		return nil, fmt.Errorf("schema definition is required")
	}

	checked := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		raw, ok := values[f.Name]
		if !ok {
			if f.Required {
				return nil, &ValidationError{Schema: def.Name, Field: f.Name, Reason: "missing"}
			}
			continue
		}
		switch f.Type {
		case FieldString:
			s, ok := raw.(string)
			if !ok {
				return nil, &ValidationError{Schema: def.Name, Field: f.Name, Reason: fmt.Sprintf("expected string, got %T", raw)}
			}
			if f.Required && s == "" {
				return nil, &ValidationError{Schema: def.Name, Field: f.Name, Reason: "empty"}
			}
			if len(f.OneOf) > 0 && !contains(f.OneOf, s) {
				return nil, &ValidationError{Schema: def.Name, Field: f.Name, Reason: fmt.Sprintf("%q not in %v", s, f.OneOf)}
			}
			checked[f.Name] = s
		case FieldNumber:
			n, ok := raw.(float64)
			if !ok {
				return nil, &ValidationError{Schema: def.Name, Field: f.Name, Reason: fmt.Sprintf("expected number, got %T", raw)}
			}
			if f.Min != nil && n < *f.Min {
				return nil, &ValidationError{Schema: def.Name, Field: f.Name, Reason: fmt.Sprintf("%v below minimum %v", n, *f.Min)}
			}
			if f.Max != nil && n > *f.Max {
				return nil, &ValidationError{Schema: def.Name, Field: f.Name, Reason: fmt.Sprintf("%v above maximum %v", n, *f.Max)}
			}
			checked[f.Name] = n
		case FieldList:
			l, ok := raw.([]string)
			if !ok {
				return nil, &ValidationError{Schema: def.Name, Field: f.Name, Reason: fmt.Sprintf("expected list, got %T", raw)}
			}
			if f.Required && len(l) == 0 {
				return nil, &ValidationError{Schema: def.Name, Field: f.Name, Reason: "empty"}
			}
			checked[f.Name] = append([]string(nil), l...)
		}
	}

	return &Record{def: def, values: checked}, nil
}

// Schema returns the definition the record was validated against.
func (r *Record) Schema() *Definition {
	return r.def
}

// String returns a string field, or "" when absent.
func (r *Record) String(name string) string {
	s, _ := r.values[name].(string)
	return s
}

// Number returns a number field, or 0 when absent.
func (r *Record) Number(name string) float64 {
	n, _ := r.values[name].(float64)
	return n
}

// List returns a copy of a list field, or nil when absent.
func (r *Record) List(name string) []string {
	l, _ := r.values[name].([]string)
	if l == nil {
		return nil
	}
	return append([]string(nil), l...)
}

// MarshalJSON renders the record's fields as a flat JSON object.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.values)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Bound is a convenience for declaring Min/Max literals inline.
func Bound(v float64) *float64 {
	return &v
}
