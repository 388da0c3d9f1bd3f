package spec

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

func strSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: "string"}}
}

func TestExtract_OrderingContract(t *testing.T) {
	t.Parallel()
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "Ordering", Version: "1.0.0"},
		Paths: openapi3.Paths{
			"/b": &openapi3.PathItem{
				Delete: &openapi3.Operation{},
				Get:    &openapi3.Operation{},
				Post:   &openapi3.Operation{},
			},
			"/a": &openapi3.PathItem{
				Patch: &openapi3.Operation{},
				Put:   &openapi3.Operation{},
			},
		},
	}

	m, err := Extract(doc, WithPathOrder([]string{"/b", "/a"}))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	var got []string
	for _, ep := range m.Endpoints {
		got = append(got, ep.Method+" "+ep.Path)
	}
	want := []string{"get /b", "post /b", "delete /b", "put /a", "patch /a"}
	if len(got) != len(want) {
		t.Fatalf("endpoint count: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtract_OperationIDPassthroughAndSynthesis(t *testing.T) {
	t.Parallel()
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "IDs", Version: "1"},
		Paths: openapi3.Paths{
			"/users/{id}": &openapi3.PathItem{
				Get:  &openapi3.Operation{OperationID: "fetchUser"},
				Post: &openapi3.Operation{},
			},
		},
	}
	m, err := Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if m.Endpoints[0].OperationID != "fetchUser" {
		t.Errorf("explicit id: got %q", m.Endpoints[0].OperationID)
	}
	if m.Endpoints[1].OperationID != "PostUsersById" {
		t.Errorf("synthesized id: got %q", m.Endpoints[1].OperationID)
	}
}

func TestExtract_ParameterMerge(t *testing.T) {
	t.Parallel()
	pathLevel := openapi3.Parameters{
		{Value: &openapi3.Parameter{Name: "id", In: "path", Required: true, Schema: strSchema()}},
		{Value: &openapi3.Parameter{Name: "verbose", In: "query", Schema: strSchema()}},
	}
	opLevel := openapi3.Parameters{
		// Overrides the path-level declaration of the same name.
		{Value: &openapi3.Parameter{Name: "verbose", In: "query", Required: true, Description: "op wins", Schema: strSchema()}},
		{Value: &openapi3.Parameter{Name: "limit", In: "query", Schema: strSchema()}},
	}
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "Params", Version: "1"},
		Paths: openapi3.Paths{
			"/things/{id}": &openapi3.PathItem{
				Parameters: pathLevel,
				Get:        &openapi3.Operation{Parameters: opLevel},
			},
		},
	}
	m, err := Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	params := m.Endpoints[0].Parameters
	if len(params) != 3 {
		t.Fatalf("expected 3 merged params, got %d", len(params))
	}
	if params[0].Name != "id" || params[1].Name != "verbose" || params[2].Name != "limit" {
		t.Fatalf("param order: %q %q %q", params[0].Name, params[1].Name, params[2].Name)
	}
	if !params[1].Required || params[1].Description != "op wins" {
		t.Errorf("operation-level override lost: %+v", params[1])
	}
}

func TestExtract_RequestBodyPrefersJSON(t *testing.T) {
	t.Parallel()
	body := &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
		Required: true,
		Content: openapi3.Content{
			"text/plain":       &openapi3.MediaType{Schema: strSchema()},
			"application/json": &openapi3.MediaType{Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: "object"}}},
		},
	}}
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "Body", Version: "1"},
		Paths: openapi3.Paths{
			"/orders": &openapi3.PathItem{Post: &openapi3.Operation{RequestBody: body}},
		},
	}
	m, err := Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	rb := m.Endpoints[0].RequestBody
	if rb == nil {
		t.Fatal("missing request body")
	}
	if rb.ContentType != "application/json" {
		t.Errorf("content type: got %q", rb.ContentType)
	}
	if !rb.Required {
		t.Errorf("required flag lost")
	}
	if rb.Schema["type"] != "object" {
		t.Errorf("schema: %v", rb.Schema)
	}
}

func TestExtract_RequestBodyFallbackUsesDeclarationOrder(t *testing.T) {
	t.Parallel()
	// text/plain is declared first but sorts after application/xml; the
	// declared order must win.
	body := &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
		Content: openapi3.Content{
			"text/plain":      &openapi3.MediaType{Schema: strSchema()},
			"application/xml": &openapi3.MediaType{Schema: strSchema()},
		},
	}}
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "Body", Version: "1"},
		Paths: openapi3.Paths{
			"/orders": &openapi3.PathItem{Post: &openapi3.Operation{RequestBody: body}},
		},
	}
	order := map[string][]string{
		"post /orders": {"text/plain", "application/xml"},
	}
	m, err := Extract(doc, WithContentTypeOrder(order))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := m.Endpoints[0].RequestBody.ContentType; got != "text/plain" {
		t.Errorf("content type: got %q, want first declared", got)
	}
}

func TestExtract_RequestBodyFallbackWithoutDeclarationOrder(t *testing.T) {
	t.Parallel()
	body := &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
		Content: openapi3.Content{
			"text/plain":      &openapi3.MediaType{Schema: strSchema()},
			"application/xml": &openapi3.MediaType{Schema: strSchema()},
		},
	}}
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "Body", Version: "1"},
		Paths: openapi3.Paths{
			"/orders": &openapi3.PathItem{Post: &openapi3.Operation{RequestBody: body}},
		},
	}
	m, err := Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := m.Endpoints[0].RequestBody.ContentType; got != "application/xml" {
		t.Errorf("content type: got %q, want sorted fallback", got)
	}
}

func TestExtract_SecurityFlattening(t *testing.T) {
	t.Parallel()
	opSec := openapi3.SecurityRequirements{
		{"ApiKeyAuth": []string{}},
		{"BearerAuth": []string{}, "ApiKeyAuth": []string{}},
	}
	doc := &openapi3.T{
		OpenAPI:  "3.0.0",
		Info:     &openapi3.Info{Title: "Sec", Version: "1"},
		Security: openapi3.SecurityRequirements{{"GlobalKey": []string{}}},
		Components: &openapi3.Components{SecuritySchemes: openapi3.SecuritySchemes{
			"ApiKeyAuth": &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{Type: "apiKey", Name: "X-API-Key", In: "header"}},
			"BearerAuth": &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}},
			"GlobalKey":  &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{Type: "apiKey", Name: "key", In: "query"}},
		}},
		Paths: openapi3.Paths{
			"/secured": &openapi3.PathItem{
				Get:  &openapi3.Operation{Security: &opSec},
				Post: &openapi3.Operation{}, // inherits document-level security
			},
		},
	}
	m, err := Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	got := m.Endpoints[0].Security
	if len(got) != 2 || got[0] != "ApiKeyAuth" || got[1] != "BearerAuth" {
		t.Errorf("flattened security: %v", got)
	}
	if g := m.Endpoints[1].Security; len(g) != 1 || g[0] != "GlobalKey" {
		t.Errorf("document-level fallback: %v", g)
	}

	if ss := m.SecuritySchemes["ApiKeyAuth"]; ss.Type != "apiKey" || ss.Name != "X-API-Key" || ss.In != "header" {
		t.Errorf("apiKey scheme: %+v", ss)
	}
	if ss := m.SecuritySchemes["BearerAuth"]; ss.Type != "http" || ss.Scheme != "bearer" || ss.BearerFormat != "JWT" {
		t.Errorf("bearer scheme: %+v", ss)
	}
}

func TestExtract_SparseDocument(t *testing.T) {
	t.Parallel()
	doc := &openapi3.T{OpenAPI: "3.0.0", Info: &openapi3.Info{Title: "Empty", Version: "0.0.1"}}
	m, err := Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(m.Endpoints) != 0 {
		t.Errorf("expected no endpoints, got %d", len(m.Endpoints))
	}
	if m.BaseURL != "" {
		t.Errorf("expected empty base URL, got %q", m.BaseURL)
	}
}

func TestExtract_BaseURLFirstServer(t *testing.T) {
	t.Parallel()
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "Servers", Version: "1"},
		Servers: openapi3.Servers{
			{URL: "https://api.example.com/v1"},
			{URL: "https://staging.example.com"},
		},
	}
	m, err := Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if m.BaseURL != "https://api.example.com/v1" {
		t.Errorf("base URL: got %q", m.BaseURL)
	}
}
