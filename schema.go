package aisdk

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateInput checks a tool-call input JSON string against the tool's
// input schema. A nil schema accepts any input.
func (t FunctionTool) ValidateInput(input string) error {
	if t.InputSchema == nil {
		return nil
	}
	schemaJSON, err := json.Marshal(t.InputSchema)
	if err != nil {
		return SerdeError(err)
	}

	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("inline://tool/%s", t.Name)
	if err := compiler.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return InvalidArgument("invalid tool schema: " + err.Error())
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return InvalidArgument("invalid tool schema: " + err.Error())
	}

	var value any
	if err := json.Unmarshal([]byte(input), &value); err != nil {
		return InvalidArgument("tool input is not valid JSON: " + err.Error())
	}
	if err := schema.Validate(value); err != nil {
		return InvalidArgument("tool input does not match schema: " + err.Error())
	}
	return nil
}
