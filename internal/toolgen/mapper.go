// Package toolgen converts extracted endpoints into self-describing MCP tool
// definitions with merged JSON Schema input schemas.
package toolgen

import (
	"fmt"
	"strings"

	"github.com/mark3labs/openapi2mcpgen/internal/spec"
)

// ToolDefinition is one callable tool bound to exactly one endpoint. All data
// a generated server needs at runtime is carried here and serialized into the
// emitted source; nothing refers back to the generator.
type ToolDefinition struct {
	Name                   string           `json:"name"`
	Description            string           `json:"description"`
	InputSchema            map[string]any   `json:"inputSchema"`
	Method                 string           `json:"method"` // lowercase
	PathTemplate           string           `json:"pathTemplate"`
	Parameters             []spec.Parameter `json:"parameters,omitempty"`
	RequestBodyContentType string           `json:"requestBodyContentType,omitempty"`
	SecuritySchemeNames    []string         `json:"securitySchemes,omitempty"`
}

// EndpointKey builds the selection key for one endpoint: uppercase method,
// colon, path template exactly as declared. Consumers that re-derive keys
// independently must produce the same strings.
func EndpointKey(ep spec.Endpoint) string {
	return strings.ToUpper(ep.Method) + ":" + ep.Path
}

// AllEndpointKeys returns the selection keys of every endpoint in order.
func AllEndpointKeys(endpoints []spec.Endpoint) []string {
	keys := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		keys = append(keys, EndpointKey(ep))
	}
	return keys
}

// Map converts endpoints into tool definitions. When enabled is non-nil,
// only endpoints whose EndpointKey is a member are retained, preserving
// endpoint order. A nil enabled list keeps everything.
func Map(endpoints []spec.Endpoint, enabled []string) []ToolDefinition {
	var allow map[string]bool
	if enabled != nil {
		allow = make(map[string]bool, len(enabled))
		for _, k := range enabled {
			allow[k] = true
		}
	}

	tools := make([]ToolDefinition, 0, len(endpoints))
	for _, ep := range endpoints {
		if allow != nil && !allow[EndpointKey(ep)] {
			continue
		}
		tool := ToolDefinition{
			Name:                ep.OperationID,
			Description:         describe(ep),
			InputSchema:         buildInputSchema(ep),
			Method:              strings.ToLower(ep.Method),
			PathTemplate:        ep.Path,
			Parameters:          ep.Parameters,
			SecuritySchemeNames: ep.Security,
		}
		if ep.RequestBody != nil {
			tool.RequestBodyContentType = ep.RequestBody.ContentType
		}
		tools = append(tools, tool)
	}
	return tools
}

// buildInputSchema merges parameters and request body into a single JSON
// Schema object. Parameter-level descriptions win over schema-level ones;
// the body lands under the reserved "requestBody" key with a fixed
// description. The required array is omitted entirely when empty.
func buildInputSchema(ep spec.Endpoint) map[string]any {
	properties := map[string]any{}
	var required []string

	for _, p := range ep.Parameters {
		prop := copySchema(p.Schema)
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	if rb := ep.RequestBody; rb != nil {
		bodyProp := copySchema(rb.Schema)
		bodyProp["description"] = "The JSON request body."
		properties["requestBody"] = bodyProp
		if rb.Required {
			required = append(required, "requestBody")
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func describe(ep spec.Endpoint) string {
	desc := ep.Summary
	if desc == "" {
		desc = fmt.Sprintf("Executes %s %s", strings.ToUpper(ep.Method), ep.Path)
	}
	if ep.Description != "" && ep.Description != ep.Summary {
		desc = desc + "\n\n" + ep.Description
	}
	return desc
}

// copySchema shallow-copies a schema node so description overrides never
// mutate the extracted endpoint.
func copySchema(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	return out
}
