package tools

import (
	"context"
	"encoding/json"

	"github.com/djav1985/v-axion-ai/core"
)

type toolListArgs struct {
	Detailed      bool `json:"detailed"`
	IncludeSchema bool `json:"include_schema"`
}

type toolInfoArgs struct {
	ToolName      string `json:"tool_name"`
	IncludeSchema bool   `json:"include_schema"`
}

// registerMetaTools adds tool.list and tool.info, which let an actor
// inspect the catalog it is holding. Registered last so they see the
// full registry.
func registerMetaTools(r *Registry) error {
	listSchema := ObjectSchema(map[string]interface{}{
		"detailed":       BooleanProperty("Include descriptions for each tool"),
		"include_schema": BooleanProperty("Include the JSON schema for arguments"),
	})
	infoSchema := ObjectSchema(map[string]interface{}{
		"tool_name":      StringProperty("Registered tool name"),
		"include_schema": BooleanProperty("Include the JSON schema for arguments"),
	}, "tool_name")

	if err := r.Register(NewTool("tool.list", "Enumerate registered tools.", listSchema,
		func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
			var in toolListArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return fail("bad arguments: %v", err), nil
			}
			if !in.Detailed && !in.IncludeSchema {
				return ok(map[string]any{"tools": r.Names()}), nil
			}
			entries := make([]map[string]any, 0)
			for _, d := range r.Describe() {
				entry := map[string]any{
					"name":        d.Name,
					"description": d.Description,
				}
				if in.IncludeSchema {
					entry["schema"] = d.Schema
				}
				entries = append(entries, entry)
			}
			return ok(map[string]any{"tools": entries}), nil
		})); err != nil {
		return err
	}

	return r.Register(NewTool("tool.info", "Fetch metadata for a specific tool.", infoSchema,
		func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
			var in toolInfoArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return fail("bad arguments: %v", err), nil
			}
			for _, d := range r.Describe() {
				if d.Name == in.ToolName {
					entry := map[string]any{
						"name":        d.Name,
						"description": d.Description,
					}
					if in.IncludeSchema {
						entry["schema"] = d.Schema
					}
					return ok(entry), nil
				}
			}
			return fail("unknown tool: %s", in.ToolName), nil
		}))
}
