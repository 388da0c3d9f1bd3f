package spec

// Descriptor model produced by extraction and consumed by the tool mapper
// and the emitter.

// APIModel is the flat view of one resolved OpenAPI document.
type APIModel struct {
	Title           string
	Version         string
	Description     string
	BaseURL         string
	Endpoints       []Endpoint
	SecuritySchemes map[string]SecurityScheme
}

// Endpoint is one (method, path) operation. Immutable after extraction.
type Endpoint struct {
	OperationID string
	Method      string // lowercase: get|post|put|patch|delete|head|options
	Path        string
	Summary     string
	Description string
	Tags        []string
	Parameters  []Parameter
	RequestBody *RequestBody
	Security    []string // flattened security scheme names
}

// Parameter carries an already-converted JSON Schema node for one parameter.
// JSON tags match the wire shape baked into emitted tool tables.
type Parameter struct {
	Name        string         `json:"name"`
	In          string         `json:"in"` // path|query|header|cookie
	Required    bool           `json:"required,omitempty"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// RequestBody retains a single media type: application/json when declared,
// otherwise the first declared content type.
type RequestBody struct {
	Required    bool
	ContentType string
	Schema      map[string]any
}

// SecurityScheme carries only the fields relevant to its type.
type SecurityScheme struct {
	Type         string   `json:"type"`
	Name         string   `json:"name,omitempty"`         // apiKey: header/query/cookie name
	In           string   `json:"in,omitempty"`           // apiKey location
	Scheme       string   `json:"scheme,omitempty"`       // http: basic|bearer
	BearerFormat string   `json:"bearerFormat,omitempty"` // http bearer
	Scopes       []string `json:"scopes,omitempty"`       // oauth2: union of flow scopes
}
