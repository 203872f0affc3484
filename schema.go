// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package microversion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks a raw request body against the rules bound to one
// version window. Implementations must be safe for concurrent use; the
// same validator serves every request inside its range.
//
// Build one with [JSONSchema] or [Struct], or implement the interface
// for rules neither strategy expresses.
type Validator interface {
	// Validate returns a [*BodyValidationError] when the body violates
	// the rules, nil when it passes.
	Validate(ctx context.Context, body []byte) error
}

// ValidatorFunc adapts a function to the [Validator] interface.
type ValidatorFunc func(ctx context.Context, body []byte) error

// Validate implements [Validator].
func (f ValidatorFunc) Validate(ctx context.Context, body []byte) error {
	return f(ctx, body)
}

// JSONSchema compiles a JSON Schema document into a [Validator]. The id
// names the schema in error metadata; it may be empty. Compilation
// happens once, at binding time, with format and content assertions on.
//
//	createSchema, err := microversion.JSONSchema("servers.create", `{
//	    "type": "object",
//	    "properties": {"name": {"type": "string", "minLength": 1}},
//	    "required": ["name"],
//	    "additionalProperties": false
//	}`)
func JSONSchema(id, schemaJSON string) (Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()
	compiler.AssertContent()

	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}

	url := id
	if url == "" {
		url = "schema.json"
	}
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &jsonSchemaValidator{schema: schema}, nil
}

// MustJSONSchema is like [JSONSchema] but panics on a schema that does
// not compile. Use it for schema literals in registration code.
func MustJSONSchema(id, schemaJSON string) Validator {
	v, err := JSONSchema(id, schemaJSON)
	if err != nil {
		panic(fmt.Sprintf("microversion: MustJSONSchema(%q): %v", id, err))
	}
	return v
}

type jsonSchemaValidator struct {
	schema *jsonschema.Schema
}

func (v *jsonSchemaValidator) Validate(_ context.Context, body []byte) error {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return &BodyValidationError{Fields: []FieldError{{
			Code:    "invalid_json",
			Message: "request body is not valid JSON",
		}}}
	}

	err := v.schema.Validate(data)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		fields := collectSchemaFields(verr, nil)
		sortFields(fields)
		return &BodyValidationError{Fields: fields}
	}
	return &BodyValidationError{Fields: []FieldError{{
		Code:    "schema_validation_error",
		Message: err.Error(),
	}}}
}

// collectSchemaFields flattens the validation error tree into field
// errors, keeping leaves only; branch nodes repeat their causes.
func collectSchemaFields(verr *jsonschema.ValidationError, fields []FieldError) []FieldError {
	if verr == nil {
		return fields
	}

	if len(verr.Causes) == 0 {
		path := strings.Join(verr.InstanceLocation, ".")
		fields = append(fields, FieldError{
			Path:    path,
			Code:    "schema." + fmt.Sprintf("%v", verr.ErrorKind),
			Message: verr.Error(),
		})
		return fields
	}

	for _, cause := range verr.Causes {
		fields = collectSchemaFields(cause, fields)
	}
	return fields
}

// Struct builds a [Validator] that decodes the body into a fresh copy of
// prototype and enforces its go-playground/validator tags. Field paths in
// errors use JSON names.
//
//	type createRequest struct {
//	    Name string `json:"name" validate:"required,min=1"`
//	}
//	v, err := microversion.Struct(createRequest{})
func Struct(prototype any) (Validator, error) {
	t := reflect.TypeOf(prototype)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("prototype must be a struct or pointer to struct, got %T", prototype)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &structValidator{typ: t, validate: v}, nil
}

// MustStruct is like [Struct] but panics on a non-struct prototype.
func MustStruct(prototype any) Validator {
	v, err := Struct(prototype)
	if err != nil {
		panic(fmt.Sprintf("microversion: MustStruct: %v", err))
	}
	return v
}

type structValidator struct {
	typ      reflect.Type
	validate *validator.Validate
}

func (s *structValidator) Validate(ctx context.Context, body []byte) error {
	target := reflect.New(s.typ).Interface()
	if err := json.Unmarshal(body, target); err != nil {
		return &BodyValidationError{Fields: []FieldError{{
			Code:    "invalid_json",
			Message: "request body is not valid JSON",
		}}}
	}

	err := s.validate.StructCtx(ctx, target)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, e := range verrs {
			// Namespace starts with the anonymous top struct; the client
			// never named it, so strip it from the path.
			path := e.Namespace()
			if idx := strings.Index(path, "."); idx != -1 {
				path = path[idx+1:]
			}
			fields = append(fields, FieldError{
				Path:    path,
				Code:    "tag." + e.Tag(),
				Message: tagMessage(e),
			})
		}
		sortFields(fields)
		return &BodyValidationError{Fields: fields}
	}
	return &BodyValidationError{Fields: []FieldError{{
		Code:    "tag_error",
		Message: err.Error(),
	}}}
}

// tagMessage returns a human-readable message for a tag violation.
func tagMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Type().Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", e.Param())
		}
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}

// sortFields orders field errors by path, then code, for deterministic
// responses.
func sortFields(fields []FieldError) {
	slices.SortFunc(fields, func(a, b FieldError) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
}
