package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// FieldKind identifies the constraint applied to a parameter field.
type FieldKind int

const (
	// FieldNumber accepts finite JSON numbers.
	FieldNumber FieldKind = iota + 1
	// FieldEnum accepts one string out of a declared set.
	FieldEnum
)

// String returns the JSON Schema type name for the kind.
func (k FieldKind) String() string {
	switch k {
	case FieldNumber:
		return "number"
	case FieldEnum:
		return "string"
	default:
		return "unknown"
	}
}

// Field describes one required parameter.
type Field struct {
	Name        string
	Kind        FieldKind
	Enum        []string
	Description string
}

// Schema is the parameter contract of an operation. Every field is required
// and unknown input fields are ignored.
type Schema struct {
	Fields []Field
}

// Field returns the named field declaration.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Accepts reports whether value is allowed for the named enum field.
func (s Schema) Accepts(name, value string) bool {
	f, ok := s.Field(name)
	return ok && f.Kind == FieldEnum && slices.Contains(f.Enum, value)
}

// Value is a validated parameter value tagged by its kind.
type Value struct {
	Kind   FieldKind
	Number float64
	Text   string
}

// Args holds validated parameters keyed by field name.
type Args map[string]Value

// Number returns the numeric value of a validated number field.
func (a Args) Number(name string) float64 {
	return a[name].Number
}

// Enum returns the value of a validated enum field.
func (a Args) Enum(name string) string {
	return a[name].Text
}

// FieldError names one offending field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports every field that failed validation.
type ValidationError struct {
	Operation string
	Fields    []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Reason)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	prefix := "invalid parameters"
	if e.Operation != "" {
		prefix = fmt.Sprintf("invalid parameters for %q", e.Operation)
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Validate checks raw JSON input against the schema and returns typed
// arguments. A missing or null payload is treated as an empty object.
func (s Schema) Validate(raw json.RawMessage) (Args, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	var input map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &input); err != nil || input == nil {
		return nil, &ValidationError{Fields: []FieldError{{Reason: "arguments must be a JSON object"}}}
	}

	args := make(Args, len(s.Fields))
	var failures []FieldError
	for _, f := range s.Fields {
		value, reason := f.parse(input[f.Name])
		if reason != "" {
			failures = append(failures, FieldError{Field: f.Name, Reason: reason})
			continue
		}
		args[f.Name] = value
	}
	if len(failures) > 0 {
		return nil, &ValidationError{Fields: failures}
	}
	return args, nil
}

func (f Field) parse(raw json.RawMessage) (Value, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{}, "required"
	}
	switch f.Kind {
	case FieldNumber:
		if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
			return Value{}, "expected number"
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, "expected number"
		}
		v, err := strconv.ParseFloat(n.String(), 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return Value{}, "expected finite number"
		}
		return Value{Kind: FieldNumber, Number: v}, ""
	case FieldEnum:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Value{}, "expected string"
		}
		if !slices.Contains(f.Enum, text) {
			return Value{}, fmt.Sprintf("must be one of %s", strings.Join(f.Enum, ", "))
		}
		return Value{Kind: FieldEnum, Text: text}, ""
	default:
		return Value{}, "unsupported field kind"
	}
}

// JSONSchema renders the schema as a JSON Schema object description.
func (s Schema) JSONSchema() *jsonschema.Schema {
	out := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(s.Fields)),
		Required:   make([]string, 0, len(s.Fields)),
	}
	for _, f := range s.Fields {
		prop := &jsonschema.Schema{Type: f.Kind.String(), Description: f.Description}
		for _, v := range f.Enum {
			prop.Enum = append(prop.Enum, v)
		}
		out.Properties[f.Name] = prop
		out.Required = append(out.Required, f.Name)
	}
	return out
}
