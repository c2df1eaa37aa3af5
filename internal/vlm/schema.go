package vlm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a closed JSON schema (all non-omitempty fields
// required, no additional properties) from the Go type of v.
func SchemaFor(name, description string, v any) (*Schema, error) {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	var def map[string]any
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", name, err)
	}
	// Meta keys confuse some guided-decoding backends.
	delete(def, "$schema")
	delete(def, "$id")
	return &Schema{Name: name, Description: description, Definition: def}, nil
}
