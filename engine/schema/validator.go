package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

var ErrValidation = errors.New("input validation failed")

// ValidationError reports missing or malformed task input.
type ValidationError struct {
	Task   string
	Schema string
	// Missing is true when the task declares an input but none was sent.
	Missing bool
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Missing {
		return fmt.Sprintf("Task '%s' requires input of type %s but received none", e.Task, e.Schema)
	}
	return fmt.Sprintf("Input data does not match task's input type %s: %v", e.Schema, e.Cause)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var structValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate coerces raw into the type declared by in.
//
// A nil in means the task takes no input; raw is ignored and nil returned.
// A value already of the declared type is returned unchanged.
func Validate(taskName string, raw any, in *Type) (any, error) {
	if in == nil {
		return nil, nil
	}
	if raw == nil {
		return nil, &ValidationError{Task: taskName, Schema: in.Name(), Missing: true}
	}
	if isInstance(raw, in.GoType()) {
		return raw, nil
	}
	doc, err := normalize(raw)
	if err != nil {
		return nil, &ValidationError{Task: taskName, Schema: in.Name(), Cause: err}
	}
	if err := checkSchema(doc, in); err != nil {
		return nil, &ValidationError{Task: taskName, Schema: in.Name(), Cause: err}
	}
	value, err := decode(doc, in.GoType())
	if err != nil {
		return nil, &ValidationError{Task: taskName, Schema: in.Name(), Cause: err}
	}
	if err := validateStruct(value); err != nil {
		return nil, &ValidationError{Task: taskName, Schema: in.Name(), Cause: err}
	}
	return value, nil
}

func isInstance(raw any, goType reflect.Type) bool {
	rawType := reflect.TypeOf(raw)
	if rawType == goType {
		return true
	}
	return rawType.Kind() == reflect.Pointer && rawType.Elem() == goType
}

// normalize converts raw into plain JSON values so schema evaluation and
// decoding see the same document the orchestrator sent.
func normalize(raw any) (any, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("input is not JSON serializable: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("input is not valid JSON: %w", err)
	}
	return doc, nil
}

func checkSchema(doc any, in *Type) error {
	compiled, err := in.compile()
	if err != nil {
		return err
	}
	if compiled == nil {
		return nil
	}
	result := compiled.Validate(doc)
	if result.Valid {
		return nil
	}
	return fmt.Errorf("schema validation failed: %s", describeErrors(result))
}

func describeErrors(result *Result) string {
	if result == nil || len(result.Errors) == 0 {
		return "invalid value"
	}
	parts := make([]string, 0, len(result.Errors))
	for key, evalErr := range result.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", key, evalErr.Error()))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func decode(doc any, goType reflect.Type) (any, error) {
	target := reflect.New(goType)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target.Interface(),
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return target.Elem().Interface(), nil
}

func validateStruct(value any) error {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Struct {
		return nil
	}
	return NewStructValidator(value).Validate()
}

// -----------------------------------------------------------------------------
// StructValidator
// -----------------------------------------------------------------------------

type StructValidator struct {
	validate *validator.Validate
	value    any
}

func NewStructValidator(value any) *StructValidator {
	return &StructValidator{
		validate: structValidate,
		value:    value,
	}
}

func (v *StructValidator) Validate() error {
	return v.validate.Struct(v.value)
}
