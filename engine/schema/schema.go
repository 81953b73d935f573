package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonschema"
)

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

type Schema map[string]any
type Result = jsonschema.EvaluationResult

func (s *Schema) String() string {
	bytes, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(bytes)
}

func (s *Schema) Compile() (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

// -----------------------------------------------------------------------------
// Type
// -----------------------------------------------------------------------------

// Type declares the input a task expects: a Go type plus the JSON Schema
// used to check raw payloads before they are decoded into it.
type Type struct {
	name   string
	goType reflect.Type
	doc    Schema

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

type Option func(*Type)

// WithName overrides the display name used in validation errors.
func WithName(name string) Option {
	return func(t *Type) {
		t.name = name
	}
}

// WithSchema replaces the schema generated from the Go type.
func WithSchema(doc Schema) Option {
	return func(t *Type) {
		t.doc = doc
	}
}

// Of declares T as a task input type.
func Of[T any](opts ...Option) *Type {
	goType := reflect.TypeOf((*T)(nil)).Elem()
	t := &Type{name: goType.Name(), goType: goType}
	if t.name == "" {
		t.name = goType.String()
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Type) Name() string {
	return t.name
}

func (t *Type) GoType() reflect.Type {
	return t.goType
}

// JSONSchema returns the schema document for the type, generating it from
// the Go type when none was supplied.
func (t *Type) JSONSchema() (Schema, error) {
	if t.doc != nil {
		return t.doc, nil
	}
	reflector := &invopop.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	generated := reflector.ReflectFromType(t.goType)
	generated.Version = ""
	generated.ID = ""
	raw, err := json.Marshal(generated)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", t.name, err)
	}
	var doc Schema
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", t.name, err)
	}
	return doc, nil
}

func (t *Type) compile() (*jsonschema.Schema, error) {
	t.once.Do(func() {
		doc, err := t.JSONSchema()
		if err != nil {
			t.err = err
			return
		}
		t.compiled, t.err = doc.Compile()
	})
	return t.compiled, t.err
}
