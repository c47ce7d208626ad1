package rainmaker

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/node-list-v1.json
var nodeListSchemaJSON string

const nodeListSchemaURL = "node-list-v1.json"

// Validator checks the top-level shape of node listings. It does not look
// inside individual node entries.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded node-list schema
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(nodeListSchemaURL, strings.NewReader(nodeListSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile(nodeListSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateNodeList validates a raw response body and decodes it
func (v *Validator) ValidateNodeList(data []byte) (*NodeList, error) {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, NewFormatError("node list is not valid JSON", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return nil, NewFormatError("node list does not match expected shape", err)
	}

	var list NodeList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, NewFormatError("failed to decode node list", err)
	}
	return &list, nil
}

// MustNewValidator is NewValidator for the embedded schema, which always compiles
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}
