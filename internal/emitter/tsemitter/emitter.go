// Package tsemitter renders the tool model into a TypeScript MCP server
// source bundle. Emission is pure: the same tools and config always produce
// byte-identical output, and nothing is written until the caller asks.
package tsemitter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	genspec "github.com/mark3labs/openapi2mcpgen/internal/spec"
	"github.com/mark3labs/openapi2mcpgen/internal/toolgen"
)

// Config captures every input that influences emission. Feature flags are
// resolved exactly once into the template data; every rendered file consumes
// the same resolved values.
type Config struct {
	ServerName                string
	ServerVersion             string
	BaseURL                   string
	TelemetryEnabled          bool
	LocalTelemetryPackagePath string // file: dependency override for the telemetry package
	OAuth2                    *OAuth2Config
	Prompts                   []Prompt
}

// OAuth2Config switches the generated server into resource-server mode when
// AuthorizationServerURL is set: bearer tokens are validated against an
// external authorization server, never issued.
type OAuth2Config struct {
	AuthorizationServerURL string
	Scopes                 []string
	ResourceURL            string
	JWKSCacheTTLSeconds    int
}

// Prompt is a static prompt definition registered by the generated server.
type Prompt struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text"`
}

// BundlePaths is the fixed output key set, in emission order. The exact set
// is part of the contract: every configuration produces these six files and
// nothing else.
var BundlePaths = []string{
	"package.json",
	"tsconfig.json",
	"src/index.ts",
	"src/transport.ts",
	".env.example",
	"README.md",
}

// Bundle maps relative file paths to rendered file text.
type Bundle struct {
	Files map[string]string
}

// Paths returns the bundle's file paths in emission order.
func (b *Bundle) Paths() []string {
	return append([]string(nil), BundlePaths...)
}

// Emit renders the six-file bundle from the filtered tool set, the generator
// config, and the extracted security scheme table. It never fails on
// well-formed inputs; config gaps are filled with the same defaults the CLI
// would apply.
func Emit(tools []toolgen.ToolDefinition, cfg Config, schemes map[string]genspec.SecurityScheme) (*Bundle, error) {
	data, err := newTemplateData(tools, cfg, schemes)
	if err != nil {
		return nil, err
	}

	files := map[string]string{
		"package.json":     renderPackageJSON(data),
		"tsconfig.json":    renderTSConfig(),
		"src/index.ts":     renderIndexTS(data),
		"src/transport.ts": renderTransportTS(data),
		".env.example":     renderEnvExample(data),
		"README.md":        renderReadme(data),
	}
	return &Bundle{Files: files}, nil
}

// templateData is the single resolved view shared by every render function.
// No render function re-derives a flag from Config.
type templateData struct {
	ServerName     string
	PackageName    string
	Version        string
	BaseURL        string
	Telemetry      bool
	TelemetryDep   string // package.json dependency value
	OAuth          bool
	OAuthServer    string
	OAuthScopes    []string
	ResourceURL    string
	JWKSCacheTTL   int
	Tools          []toolgen.ToolDefinition
	ToolsJSON      string // lookup table keyed by tool name, tool order preserved
	SchemeNames    []string // referenced schemes only, sorted
	SchemesJSON    string
	Prompts        []Prompt
	PromptsJSON    string
	Schemes        map[string]genspec.SecurityScheme
	CredVars       []CredVar
	HasOAuthScheme bool
}

// CredVar is one credential environment variable implied by a referenced
// security scheme.
type CredVar struct {
	Var     string
	Comment string
}

func newTemplateData(tools []toolgen.ToolDefinition, cfg Config, schemes map[string]genspec.SecurityScheme) (*templateData, error) {
	name := sanitizeServerName(cfg.ServerName)
	if name == "" {
		name = "mcp-server"
	}
	version := strings.TrimSpace(cfg.ServerVersion)
	if version == "" {
		version = "1.0.0"
	}

	data := &templateData{
		ServerName:  name,
		PackageName: name,
		Version:     version,
		BaseURL:     strings.TrimSpace(cfg.BaseURL),
		Telemetry:   cfg.TelemetryEnabled,
		Tools:       tools,
		Prompts:     cfg.Prompts,
	}

	if cfg.TelemetryEnabled {
		data.TelemetryDep = "^0.3.0"
		if p := strings.TrimSpace(cfg.LocalTelemetryPackagePath); p != "" {
			data.TelemetryDep = "file:" + filepath.ToSlash(p)
		}
	}

	if cfg.OAuth2 != nil && strings.TrimSpace(cfg.OAuth2.AuthorizationServerURL) != "" {
		data.OAuth = true
		data.OAuthServer = strings.TrimSpace(cfg.OAuth2.AuthorizationServerURL)
		data.OAuthScopes = cfg.OAuth2.Scopes
		data.ResourceURL = strings.TrimSpace(cfg.OAuth2.ResourceURL)
		data.JWKSCacheTTL = cfg.OAuth2.JWKSCacheTTLSeconds
		if data.JWKSCacheTTL <= 0 {
			data.JWKSCacheTTL = 300
		}
	}

	// Only schemes actually referenced by the filtered tool set surface in
	// the emitted text; unreferenced schemes produce nothing.
	data.SchemeNames = referencedSchemeNames(tools, schemes)
	data.Schemes = make(map[string]genspec.SecurityScheme, len(data.SchemeNames))
	for _, sn := range data.SchemeNames {
		data.Schemes[sn] = schemes[sn]
	}
	data.CredVars, data.HasOAuthScheme = credentialVars(data.SchemeNames, data.Schemes)

	toolsJSON, err := marshalToolTable(tools)
	if err != nil {
		return nil, fmt.Errorf("marshal tool table: %w", err)
	}
	data.ToolsJSON = toolsJSON

	schemesJSON, err := marshalSchemeTable(data.SchemeNames, data.Schemes)
	if err != nil {
		return nil, fmt.Errorf("marshal scheme table: %w", err)
	}
	data.SchemesJSON = schemesJSON

	promptsJSON, err := json.MarshalIndent(promptsOrEmpty(cfg.Prompts), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal prompts: %w", err)
	}
	data.PromptsJSON = string(promptsJSON)

	return data, nil
}

// marshalToolTable serializes the lookup table keyed by tool name while
// preserving tool order. encoding/json sorts map keys, so the object is
// assembled by hand.
func marshalToolTable(tools []toolgen.ToolDefinition) (string, error) {
	if len(tools) == 0 {
		return "{}", nil
	}
	var b strings.Builder
	b.WriteString("{\n")
	for i, tool := range tools {
		entry, err := json.MarshalIndent(tool, "  ", "  ")
		if err != nil {
			return "", err
		}
		key, err := json.Marshal(tool.Name)
		if err != nil {
			return "", err
		}
		b.WriteString("  ")
		b.Write(key)
		b.WriteString(": ")
		b.Write(entry)
		if i < len(tools)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String(), nil
}

func marshalSchemeTable(names []string, schemes map[string]genspec.SecurityScheme) (string, error) {
	if len(names) == 0 {
		return "{}", nil
	}
	var b strings.Builder
	b.WriteString("{\n")
	for i, name := range names {
		entry, err := json.MarshalIndent(schemes[name], "  ", "  ")
		if err != nil {
			return "", err
		}
		key, err := json.Marshal(name)
		if err != nil {
			return "", err
		}
		b.WriteString("  ")
		b.Write(key)
		b.WriteString(": ")
		b.Write(entry)
		if i < len(names)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String(), nil
}

func promptsOrEmpty(prompts []Prompt) []Prompt {
	if prompts == nil {
		return []Prompt{}
	}
	return prompts
}

// referencedSchemeNames collects the scheme names the filtered tool set
// actually uses, restricted to schemes the document declares, sorted.
func referencedSchemeNames(tools []toolgen.ToolDefinition, schemes map[string]genspec.SecurityScheme) []string {
	seen := make(map[string]bool)
	for _, tool := range tools {
		for _, name := range tool.SecuritySchemeNames {
			if _, declared := schemes[name]; declared {
				seen[name] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// credentialVars maps each referenced scheme to the environment variable the
// generated server reads for it. http schemes other than bearer carry no
// forwardable static credential and produce nothing.
func credentialVars(names []string, schemes map[string]genspec.SecurityScheme) ([]CredVar, bool) {
	var out []CredVar
	hasOAuth := false
	for _, name := range names {
		scheme := schemes[name]
		env := EnvName(name)
		switch scheme.Type {
		case "apiKey":
			comment := "API key for scheme " + name
			if scheme.Name != "" {
				comment += " (" + scheme.In + " " + scheme.Name + ")"
			}
			out = append(out, CredVar{Var: "API_KEY_" + env, Comment: comment})
		case "http":
			if scheme.Scheme == "bearer" {
				out = append(out, CredVar{Var: "BEARER_TOKEN_" + env, Comment: "Bearer token for scheme " + name})
			}
		case "oauth2", "openIdConnect":
			hasOAuth = true
			out = append(out, CredVar{Var: "OAUTH_ACCESS_TOKEN_" + env, Comment: "Pre-issued access token for scheme " + name + " (falls back to UPSTREAM_ACCESS_TOKEN)"})
		}
	}
	return out, hasOAuth
}

// EnvName derives the environment-variable fragment for a security scheme:
// uppercase with every non-alphanumeric replaced by underscore. The generated
// server applies the same derivation at runtime, so the two must agree.
func EnvName(scheme string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(scheme) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func sanitizeServerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-.")
}

// WriteBundle writes every bundle entry under outDir, creating parent
// directories as needed. A non-empty destination without force is a conflict:
// nothing is written. Writes are atomic via temp file + rename.
func WriteBundle(outDir string, bundle *Bundle, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("tsemitter: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	for _, rel := range bundle.Paths() {
		content, ok := bundle.Files[rel]
		if !ok {
			return fmt.Errorf("tsemitter: bundle missing %s", rel)
		}
		p := filepath.Join(abs, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}
