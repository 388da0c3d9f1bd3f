package toolgen

import (
	"reflect"
	"testing"

	"github.com/mark3labs/openapi2mcpgen/internal/spec"
)

func orderEndpoints() []spec.Endpoint {
	return []spec.Endpoint{
		{
			OperationID: "GetOrders",
			Method:      "get",
			Path:        "/Orders",
			Summary:     "List orders",
			Parameters: []spec.Parameter{
				{Name: "limit", In: "query", Schema: map[string]any{"type": "integer"}},
			},
		},
		{
			OperationID: "PostOrders",
			Method:      "post",
			Path:        "/Orders",
			RequestBody: &spec.RequestBody{
				Required:    true,
				ContentType: "application/json",
				Schema:      map[string]any{"type": "object", "description": "an order"},
			},
		},
		{
			OperationID: "GetOrdersById",
			Method:      "get",
			Path:        "/Orders/{id}",
			Parameters: []spec.Parameter{
				{Name: "id", In: "path", Required: true, Description: "Order id", Schema: map[string]any{"type": "string", "description": "schema-level"}},
			},
		},
		{
			OperationID: "DeleteOrdersById",
			Method:      "delete",
			Path:        "/Orders/{id}",
			Summary:     "Delete an order",
			Description: "Removes the order permanently.",
			Parameters: []spec.Parameter{
				{Name: "id", In: "path", Required: true, Schema: map[string]any{"type": "string"}},
			},
			Security: []string{"ApiKeyAuth"},
		},
	}
}

func TestMap_NoFilterKeepsAll(t *testing.T) {
	t.Parallel()
	eps := orderEndpoints()
	tools := Map(eps, nil)
	if len(tools) != len(eps) {
		t.Fatalf("expected %d tools, got %d", len(eps), len(tools))
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	want := []string{"GetOrders", "PostOrders", "GetOrdersById", "DeleteOrdersById"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names: %v", names)
	}
}

func TestMap_Idempotent(t *testing.T) {
	t.Parallel()
	eps := orderEndpoints()
	a := Map(eps, nil)
	b := Map(eps, nil)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("mapping not idempotent")
	}
}

func TestMap_FilterIsStrictSubset(t *testing.T) {
	t.Parallel()
	eps := orderEndpoints()
	enabled := []string{"GET:/Orders", "DELETE:/Orders/{id}"}
	tools := Map(eps, enabled)
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	allow := map[string]bool{}
	for _, k := range enabled {
		allow[k] = true
	}
	for _, tool := range tools {
		key := "GET:" + tool.PathTemplate
		if tool.Method == "delete" {
			key = "DELETE:" + tool.PathTemplate
		}
		if !allow[key] {
			t.Errorf("tool %s key %s not in enabled set", tool.Name, key)
		}
	}
	if tools[0].Name != "GetOrders" || tools[1].Name != "DeleteOrdersById" {
		t.Errorf("filter broke ordering: %s, %s", tools[0].Name, tools[1].Name)
	}
}

func TestMap_EmptyFilterMatchesNothing(t *testing.T) {
	t.Parallel()
	tools := Map(orderEndpoints(), []string{})
	if len(tools) != 0 {
		t.Errorf("expected empty result, got %d", len(tools))
	}
}

func TestAllEndpointKeys_RoundTrip(t *testing.T) {
	t.Parallel()
	eps := orderEndpoints()
	keys := AllEndpointKeys(eps)
	want := []string{"GET:/Orders", "POST:/Orders", "GET:/Orders/{id}", "DELETE:/Orders/{id}"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys: %v", keys)
	}
	all := Map(eps, nil)
	filtered := Map(eps, keys)
	if !reflect.DeepEqual(all, filtered) {
		t.Errorf("round-trip changed result")
	}
}

func TestBuildInputSchema_RequiredOmittedWhenEmpty(t *testing.T) {
	t.Parallel()
	tools := Map(orderEndpoints(), []string{"GET:/Orders"})
	schema := tools[0].InputSchema
	if _, present := schema["required"]; present {
		t.Errorf("required must be omitted, not empty: %v", schema)
	}
	if schema["type"] != "object" {
		t.Errorf("schema type: %v", schema["type"])
	}
}

func TestBuildInputSchema_RequiredOrdering(t *testing.T) {
	t.Parallel()
	ep := spec.Endpoint{
		OperationID: "PutThing",
		Method:      "put",
		Path:        "/things/{id}",
		Parameters: []spec.Parameter{
			{Name: "id", In: "path", Required: true, Schema: map[string]any{"type": "string"}},
			{Name: "dryRun", In: "query", Schema: map[string]any{"type": "boolean"}},
			{Name: "etag", In: "header", Required: true, Schema: map[string]any{"type": "string"}},
		},
		RequestBody: &spec.RequestBody{Required: true, ContentType: "application/json", Schema: map[string]any{"type": "object"}},
	}
	schema := Map([]spec.Endpoint{ep}, nil)[0].InputSchema
	required, ok := schema["required"].([]string)
	if !ok {
		t.Fatalf("required missing or wrong type: %v", schema["required"])
	}
	want := []string{"id", "etag", "requestBody"}
	if !reflect.DeepEqual(required, want) {
		t.Errorf("required order: %v", required)
	}
}

func TestBuildInputSchema_DescriptionPrecedence(t *testing.T) {
	t.Parallel()
	tools := Map(orderEndpoints(), []string{"GET:/Orders/{id}"})
	props := tools[0].InputSchema["properties"].(map[string]any)
	idProp := props["id"].(map[string]any)
	if idProp["description"] != "Order id" {
		t.Errorf("parameter description must win: %v", idProp["description"])
	}
}

func TestBuildInputSchema_RequestBodyFixedDescription(t *testing.T) {
	t.Parallel()
	tools := Map(orderEndpoints(), []string{"POST:/Orders"})
	props := tools[0].InputSchema["properties"].(map[string]any)
	body, ok := props["requestBody"].(map[string]any)
	if !ok {
		t.Fatalf("requestBody property missing")
	}
	if body["description"] != "The JSON request body." {
		t.Errorf("fixed body description expected, got %v", body["description"])
	}
	required := tools[0].InputSchema["required"].([]string)
	if len(required) != 1 || required[0] != "requestBody" {
		t.Errorf("required: %v", required)
	}
}

func TestBuildInputSchema_DoesNotMutateEndpoint(t *testing.T) {
	t.Parallel()
	eps := orderEndpoints()
	_ = Map(eps, nil)
	if d := eps[2].Parameters[0].Schema["description"]; d != "schema-level" {
		t.Errorf("endpoint schema mutated: %v", d)
	}
	if _, ok := eps[1].RequestBody.Schema["description"].(string); ok {
		if eps[1].RequestBody.Schema["description"] != "an order" {
			t.Errorf("request body schema mutated: %v", eps[1].RequestBody.Schema["description"])
		}
	}
}

func TestDescribe_Synthesis(t *testing.T) {
	t.Parallel()
	cases := []struct {
		ep   spec.Endpoint
		want string
	}{
		{spec.Endpoint{Method: "get", Path: "/x", Summary: "List"}, "List"},
		{spec.Endpoint{Method: "get", Path: "/x"}, "Executes GET /x"},
		{spec.Endpoint{Method: "get", Path: "/x", Summary: "List", Description: "More."}, "List\n\nMore."},
		{spec.Endpoint{Method: "get", Path: "/x", Summary: "Same", Description: "Same"}, "Same"},
		{spec.Endpoint{Method: "put", Path: "/x", Description: "Only desc"}, "Executes PUT /x\n\nOnly desc"},
	}
	for i, tc := range cases {
		tools := Map([]spec.Endpoint{tc.ep}, nil)
		if tools[0].Description != tc.want {
			t.Errorf("case %d: got %q, want %q", i, tools[0].Description, tc.want)
		}
	}
}
