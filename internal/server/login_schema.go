package server

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const loginSchemaURL = "login.json"

// loginSchemaJSON describes the login request body.
const loginSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "userName": {"type": "string", "minLength": 3, "maxLength": 256},
    "password": {"type": "string", "minLength": 6, "maxLength": 1024}
  },
  "required": ["userName", "password"]
}`

// Field-level messages returned to the client for invalid login bodies.
var loginFieldMessages = map[string]string{
	"userName": "Username must have at least 3 characters",
	"password": "Password must have at least 6 characters",
}

// LoginValidator validates login bodies against a compiled JSON schema.
type LoginValidator struct {
	schema *jsonschema.Schema
}

// NewLoginValidator compiles the login schema.
func NewLoginValidator() (*LoginValidator, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(loginSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse login schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource(loginSchemaURL, parsed); err != nil {
		return nil, fmt.Errorf("add login schema resource: %w", err)
	}
	schema, err := compiler.Compile(loginSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile login schema: %w", err)
	}
	return &LoginValidator{schema: schema}, nil
}

// Validate parses body as JSON and checks it against the schema. The returned
// message is safe to show to the client.
func (v *LoginValidator) Validate(body io.Reader) (string, error) {
	inst, err := jsonschema.UnmarshalJSON(body)
	if err != nil {
		return "Request body must be valid JSON", fmt.Errorf("parse login body: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return validationMessage(err), fmt.Errorf("validate login body: %w", err)
	}
	return "", nil
}

// validationMessage picks a client message from the first failing field.
func validationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return "Invalid request"
	}
	for _, leaf := range leaves(ve) {
		if len(leaf.InstanceLocation) == 0 {
			continue
		}
		if msg, ok := loginFieldMessages[leaf.InstanceLocation[0]]; ok {
			return msg
		}
	}
	return "Invalid request"
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}
