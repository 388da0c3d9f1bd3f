package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// normalizeV2Document rewrites Swagger 2.0 shapes kin-openapi refuses to
// convert. Two cases occur in the wild: an operation with several body
// parameters, and an operation mixing body with formData parameters. The
// first collapses all bodies into one object-typed body; the second turns
// every body into a formData field and forces multipart/form-data.
//
// Returns possibly-rewritten YAML, whether anything changed, and any
// parse/serialize error. On error the input is returned unchanged.
func normalizeV2Document(data []byte) ([]byte, bool, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	paths, ok := doc["paths"].(map[string]any)
	if !ok || len(paths) == 0 {
		return data, false, nil
	}

	changed := false
	for _, rawItem := range paths {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		for method, rawOp := range item {
			if !isHTTPMethod(method) {
				continue
			}
			op, ok := rawOp.(map[string]any)
			if !ok {
				continue
			}
			if normalizeV2Operation(op) {
				changed = true
			}
		}
	}

	if !changed {
		return data, false, nil
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

func isHTTPMethod(s string) bool {
	switch strings.ToLower(s) {
	case "get", "post", "put", "patch", "delete", "head", "options":
		return true
	}
	return false
}

func normalizeV2Operation(op map[string]any) bool {
	params, ok := op["parameters"].([]any)
	if !ok || len(params) == 0 {
		return false
	}

	bodies := 0
	hasFormData := false
	for _, p := range params {
		pm, _ := p.(map[string]any)
		if pm == nil {
			continue
		}
		switch {
		case paramIn(pm, "body"):
			bodies++
		case paramIn(pm, "formData"):
			hasFormData = true
		}
	}
	if bodies == 0 {
		return false
	}

	if hasFormData {
		rewriteBodiesAsFormData(op, params)
		return true
	}
	if bodies > 1 {
		mergeBodyParams(op, params)
		return true
	}
	return false
}

func paramIn(pm map[string]any, location string) bool {
	s, _ := pm["in"].(string)
	return strings.EqualFold(s, location)
}

// rewriteBodiesAsFormData replaces every body parameter with a formData
// field and appends multipart/form-data to the operation's consumes list.
func rewriteBodiesAsFormData(op map[string]any, params []any) {
	rewritten := make([]any, 0, len(params))
	for _, p := range params {
		pm, _ := p.(map[string]any)
		if pm == nil {
			continue
		}
		if paramIn(pm, "body") {
			rewritten = append(rewritten, bodyParamAsFormData(pm))
		} else {
			rewritten = append(rewritten, pm)
		}
	}
	op["parameters"] = rewritten

	consumes, _ := op["consumes"].([]any)
	for _, c := range consumes {
		if s, ok := c.(string); ok && s == "multipart/form-data" {
			return
		}
	}
	op["consumes"] = append(consumes, "multipart/form-data")
}

// mergeBodyParams collapses every body parameter into a single body whose
// schema is an object with one property per original parameter. The merged
// body is prepended so it stays first in the list.
func mergeBodyParams(op map[string]any, params []any) {
	props := map[string]any{}
	required := make([]any, 0)
	rest := make([]any, 0, len(params))

	for _, p := range params {
		pm, _ := p.(map[string]any)
		if pm == nil {
			continue
		}
		if !paramIn(pm, "body") {
			rest = append(rest, p)
			continue
		}
		name, _ := pm["name"].(string)
		if name == "" {
			name = "field"
		}
		schema := paramSchema(pm)
		if schema == nil {
			schema = map[string]any{"type": "string"}
		}
		props[name] = schema
		if rb, _ := pm["required"].(bool); rb {
			required = append(required, name)
		}
	}

	bodySchema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		bodySchema["required"] = required
	}
	merged := map[string]any{
		"in":     "body",
		"name":   "body",
		"schema": bodySchema,
	}
	op["parameters"] = append([]any{merged}, rest...)
}

// paramSchema returns the parameter's schema, synthesizing one from the
// flat type/items/format fields v2 allows on non-body parameters.
func paramSchema(pm map[string]any) map[string]any {
	if sch, ok := pm["schema"].(map[string]any); ok {
		return sch
	}
	t, _ := pm["type"].(string)
	if t == "" {
		return nil
	}
	m := map[string]any{"type": t}
	if it, ok := pm["items"].(map[string]any); ok {
		m["items"] = it
	}
	if f, ok := pm["format"].(string); ok && f != "" {
		m["format"] = f
	}
	return m
}

func bodyParamAsFormData(pm map[string]any) map[string]any {
	name, _ := pm["name"].(string)
	if name == "" {
		name = "field"
	}
	out := map[string]any{
		"in":   "formData",
		"name": name,
	}
	if desc, ok := pm["description"].(string); ok && desc != "" {
		out["description"] = desc
	}
	if req, ok := pm["required"].(bool); ok {
		out["required"] = req
	}

	var typ, format string
	var items any
	if sch, ok := pm["schema"].(map[string]any); ok {
		typ, _ = sch["type"].(string)
		if it, ok := sch["items"].(map[string]any); ok {
			items = it
		}
		format, _ = sch["format"].(string)
		if typ == "" && sch["$ref"] != nil {
			// A referenced object cannot be expressed in formData.
			typ = "string"
		}
	}
	if typ == "" {
		typ, _ = pm["type"].(string)
		if it, ok := pm["items"].(map[string]any); ok {
			items = it
		}
		format, _ = pm["format"].(string)
	}
	if typ == "" {
		typ = "string"
	}
	out["type"] = typ
	if items != nil {
		out["items"] = items
	}
	if format != "" {
		out["format"] = format
	}
	return out
}
