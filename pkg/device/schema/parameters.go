package schema

import (
	"encoding/json"
	"fmt"

	"github.com/urmzd/devicehub/pkg/device"
)

// ForCommand builds a JSON Schema document describing the arguments a
// command accepts. Undeclared arguments are allowed.
func ForCommand(cmd *device.Command) json.RawMessage {
	properties := make(map[string]any, len(cmd.Parameters))
	required := []string{}

	for _, p := range cmd.Parameters {
		properties[p.Name] = map[string]any{"type": string(p.Type)}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	doc := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": properties,
		"required":   required,
	}

	b, _ := json.Marshal(doc)
	return b
}

// ValidateParameters checks supplied arguments against the command's
// declared parameters. Failures wrap device.ErrValidation.
func (v *Validator) ValidateParameters(cmd *device.Command, params map[string]any) error {
	if len(cmd.Parameters) == 0 {
		return nil
	}

	// Round-trip so typed Go values (int, []string) validate as their JSON kinds.
	payload := map[string]any{}
	raw, err := json.Marshal(params)
	if err != nil {
		return device.Validationf("parameters are not JSON encodable: %s", err)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return device.Validationf("parameters are not a JSON object: %s", err)
	}

	if err := v.Validate(ForCommand(cmd), payload); err != nil {
		return fmt.Errorf("%w: command %q: %s", device.ErrValidation, cmd.ID, err)
	}
	return nil
}
