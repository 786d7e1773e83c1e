package tools

import (
	"encoding/json"
	"fmt"
	"math"
)

// validateArgs checks a JSON argument payload against an object schema
// built with the helpers in schema.go: required fields must be present,
// declared property types must match, enums must contain the value.
// Properties the schema does not declare are passed through untouched.
func validateArgs(schema map[string]any, args json.RawMessage) error {
	var payload map[string]any
	if len(args) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(args, &payload); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}

	props, _ := schema["properties"].(map[string]any)

	if required, ok := schema["required"].([]string); ok {
		for _, field := range required {
			if _, present := payload[field]; !present {
				return fmt.Errorf("missing required field %q", field)
			}
		}
	}

	for field, value := range payload {
		spec, ok := props[field].(map[string]any)
		if !ok {
			continue
		}
		if err := checkType(field, spec, value); err != nil {
			return err
		}
	}
	return nil
}

func checkType(field string, spec map[string]any, value any) error {
	declared, _ := spec["type"].(string)
	switch declared {
	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string", field)
		}
		if enum, ok := spec["enum"].([]string); ok && len(enum) > 0 {
			for _, allowed := range enum {
				if s == allowed {
					return nil
				}
			}
			return fmt.Errorf("field %q must be one of %v", field, enum)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("field %q must be a number", field)
		}
	case "integer":
		f, ok := value.(float64)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("field %q must be an integer", field)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean", field)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("field %q must be an object", field)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("field %q must be an array", field)
		}
	}
	return nil
}
