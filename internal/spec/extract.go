package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ExtractOption configures extraction.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	pathOrder    []string
	contentOrder map[string][]string
}

// WithPathOrder supplies the declaration order of path templates, typically
// recovered by the loader from the raw document. Paths absent from the list
// are appended afterwards in sorted order; without the option all paths are
// iterated in sorted order.
func WithPathOrder(order []string) ExtractOption {
	return func(c *extractConfig) {
		c.pathOrder = order
	}
}

// WithContentTypeOrder supplies per-operation request-body content types in
// declaration order, keyed by "method path" with lowercase method (the
// loader's ContentOrder). Without it the non-JSON fallback degrades to sorted
// key order.
func WithContentTypeOrder(order map[string][]string) ExtractOption {
	return func(c *extractConfig) {
		c.contentOrder = order
	}
}

// methodOrder is the fixed per-path iteration order. Endpoint output order is
// an observable contract: declared path order first, then this method order.
var methodOrder = []string{"get", "post", "put", "patch", "delete", "head", "options"}

// Extract walks a resolved OpenAPI v3 document and produces the flat
// descriptor model. The document is assumed already dereferenced; any $ref
// node still carrying no value is skipped rather than treated as an error.
// A document without paths yields an empty endpoint list.
func Extract(doc *openapi3.T, opts ...ExtractOption) (*APIModel, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	cfg := &extractConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	m := &APIModel{}
	if doc.Info != nil {
		m.Title = safeStr(doc.Info.Title)
		m.Version = safeStr(doc.Info.Version)
		m.Description = safeStr(doc.Info.Description)
	}
	if len(doc.Servers) > 0 && doc.Servers[0] != nil {
		m.BaseURL = safeStr(doc.Servers[0].URL)
	}

	m.SecuritySchemes = extractSecuritySchemes(doc)

	for _, p := range orderedPathKeys(doc.Paths, cfg.pathOrder) {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		for _, method := range methodOrder {
			op := operationFor(item, method)
			if op == nil {
				continue
			}

			opID := safeStr(op.OperationID)
			if opID == "" {
				opID = SynthesizeOperationID(method, p)
			}

			ep := Endpoint{
				OperationID: opID,
				Method:      method,
				Path:        p,
				Summary:     safeStr(op.Summary),
				Description: safeStr(op.Description),
				Tags:        cleanTags(op.Tags),
				Parameters:  mergeParameters(item.Parameters, op.Parameters),
				RequestBody: extractRequestBody(op.RequestBody, cfg.contentOrder[method+" "+p]),
				Security:    flattenSecurity(op, doc),
			}
			m.Endpoints = append(m.Endpoints, ep)
		}
	}

	return m, nil
}

// orderedPathKeys returns every path key exactly once: declared order first,
// then any stragglers in sorted order.
func orderedPathKeys(paths openapi3.Paths, declared []string) []string {
	if len(paths) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range declared {
		if _, ok := paths[p]; ok && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	rest := make([]string, 0, len(paths))
	for p := range paths {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func operationFor(item *openapi3.PathItem, method string) *openapi3.Operation {
	switch method {
	case "get":
		return item.Get
	case "post":
		return item.Post
	case "put":
		return item.Put
	case "patch":
		return item.Patch
	case "delete":
		return item.Delete
	case "head":
		return item.Head
	case "options":
		return item.Options
	}
	return nil
}

// mergeParameters combines path-level and operation-level parameter lists.
// Path-level entries come first in their declared order; an operation-level
// entry with the same name replaces the earlier one in place, otherwise it
// appends. Last write wins.
func mergeParameters(pathLevel, opLevel openapi3.Parameters) []Parameter {
	var out []Parameter
	index := make(map[string]int)
	add := func(refs openapi3.Parameters) {
		for _, pref := range refs {
			pm := toParameter(pref)
			if pm == nil {
				continue
			}
			if i, ok := index[pm.Name]; ok {
				out[i] = *pm
				continue
			}
			index[pm.Name] = len(out)
			out = append(out, *pm)
		}
	}
	add(pathLevel)
	add(opLevel)
	return out
}

func toParameter(pref *openapi3.ParameterRef) *Parameter {
	if pref == nil || pref.Value == nil {
		return nil
	}
	p := pref.Value
	return &Parameter{
		Name:        safeStr(p.Name),
		In:          safeStr(p.In),
		Required:    p.Required,
		Description: safeStr(p.Description),
		Schema:      schemaToMap(p.Schema),
	}
}

// extractRequestBody keeps a single media type: application/json when
// declared (with or without parameters), otherwise the first declared
// content type. Declaration order comes from the raw document via
// WithContentTypeOrder; when none survives (a $ref'd body, or a document
// built in memory) sorted key order is the deterministic stand-in.
func extractRequestBody(ref *openapi3.RequestBodyRef, declared []string) *RequestBody {
	if ref == nil || ref.Value == nil || len(ref.Value.Content) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ref.Value.Content))
	for k := range ref.Value.Content {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chosen := ""
	for _, k := range keys {
		base := k
		if idx := strings.IndexByte(k, ';'); idx > 0 {
			base = strings.TrimSpace(k[:idx])
		}
		if base == "application/json" {
			chosen = k
			break
		}
	}
	if chosen == "" {
		for _, d := range declared {
			if _, ok := ref.Value.Content[d]; ok {
				chosen = d
				break
			}
		}
	}
	if chosen == "" {
		chosen = keys[0]
	}

	mt := ref.Value.Content[chosen]
	if mt == nil {
		return nil
	}
	return &RequestBody{
		Required:    ref.Value.Required,
		ContentType: chosen,
		Schema:      schemaToMap(mt.Schema),
	}
}

// flattenSecurity collapses the operation's security requirements into a flat
// name list, falling back to document-level requirements when the operation
// declares none. The OR/AND structure across requirement objects is
// deliberately discarded.
func flattenSecurity(op *openapi3.Operation, doc *openapi3.T) []string {
	var reqs openapi3.SecurityRequirements
	if op.Security != nil {
		reqs = *op.Security
	} else {
		reqs = doc.Security
	}
	if len(reqs) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, req := range reqs {
		names := make([]string, 0, len(req))
		for name := range req {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func extractSecuritySchemes(doc *openapi3.T) map[string]SecurityScheme {
	if doc.Components == nil || len(doc.Components.SecuritySchemes) == 0 {
		return nil
	}
	out := make(map[string]SecurityScheme, len(doc.Components.SecuritySchemes))
	for name, ref := range doc.Components.SecuritySchemes {
		if ref == nil || ref.Value == nil {
			continue
		}
		ss := ref.Value
		desc := SecurityScheme{Type: safeStr(ss.Type)}
		switch desc.Type {
		case "apiKey":
			desc.Name = safeStr(ss.Name)
			desc.In = safeStr(ss.In)
		case "http":
			desc.Scheme = strings.ToLower(safeStr(ss.Scheme))
			desc.BearerFormat = safeStr(ss.BearerFormat)
		case "oauth2":
			desc.Scopes = oauthScopes(ss.Flows)
		}
		out[name] = desc
	}
	return out
}

// oauthScopes unions the scopes of every declared flow, sorted.
func oauthScopes(flows *openapi3.OAuthFlows) []string {
	if flows == nil {
		return nil
	}
	set := make(map[string]bool)
	for _, f := range []*openapi3.OAuthFlow{flows.AuthorizationCode, flows.ClientCredentials, flows.Implicit, flows.Password} {
		if f == nil {
			continue
		}
		for scope := range f.Scopes {
			set[scope] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for scope := range set {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// schemaToMap converts a resolved schema node into a plain JSON Schema map.
// allOf subschemas are merged; anyOf/oneOf are carried through as subschema
// lists. Unresolved refs yield nil.
func schemaToMap(ref *openapi3.SchemaRef) map[string]any {
	if ref == nil || ref.Value == nil {
		return nil
	}
	val := ref.Value
	prop := map[string]any{}

	if len(val.AllOf) > 0 {
		for _, sub := range val.AllOf {
			for k, v := range schemaToMap(sub) {
				prop[k] = v
			}
		}
	}
	if len(val.OneOf) > 0 {
		subs := make([]any, 0, len(val.OneOf))
		for _, sub := range val.OneOf {
			if sm := schemaToMap(sub); sm != nil {
				subs = append(subs, sm)
			}
		}
		if len(subs) > 0 {
			prop["oneOf"] = subs
		}
	}
	if len(val.AnyOf) > 0 {
		subs := make([]any, 0, len(val.AnyOf))
		for _, sub := range val.AnyOf {
			if sm := schemaToMap(sub); sm != nil {
				subs = append(subs, sm)
			}
		}
		if len(subs) > 0 {
			prop["anyOf"] = subs
		}
	}

	if t := safeStr(val.Type); t != "" {
		prop["type"] = t
	}
	if val.Format != "" {
		prop["format"] = val.Format
	}
	if val.Description != "" {
		prop["description"] = val.Description
	}
	if len(val.Enum) > 0 {
		prop["enum"] = append([]any(nil), val.Enum...)
	}
	if val.Default != nil {
		prop["default"] = val.Default
	}
	if val.Example != nil {
		prop["example"] = val.Example
	}
	if len(val.Properties) > 0 {
		objProps := map[string]any{}
		for name, sub := range val.Properties {
			if sm := schemaToMap(sub); sm != nil {
				objProps[name] = sm
			}
		}
		if len(objProps) > 0 {
			prop["properties"] = objProps
		}
		if len(val.Required) > 0 {
			prop["required"] = append([]string(nil), val.Required...)
		}
	}
	if val.Items != nil {
		if items := schemaToMap(val.Items); items != nil {
			prop["items"] = items
		}
	}
	if len(prop) == 0 {
		return nil
	}
	return prop
}

func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func safeStr(s string) string { return strings.TrimSpace(s) }
