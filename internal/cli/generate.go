package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/openapi2mcpgen/internal/emitter/tsemitter"
	genspec "github.com/mark3labs/openapi2mcpgen/internal/spec"
	"github.com/mark3labs/openapi2mcpgen/internal/toolgen"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input                    string
	Name                     string
	Out                      string
	ServerVersion            string
	BaseURL                  string
	Operations               []string // nil means every operation
	OperationsSet            bool
	Telemetry                bool
	LocalTelemetryPackage    string
	OAuthAuthorizationServer string
	OAuthResourceURL         string
	OAuthScopes              []string
	JWKSCacheTTL             int
	PromptsFile              string
	ConfigPath               string
	DryRun                   bool
	Force                    bool
	Verbose                  bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{ServerVersion: "1.0.0"}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a TypeScript MCP server from an OpenAPI document",
		Long: "Generate a TypeScript MCP server source bundle from an OpenAPI document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  openapi2mcpgen generate --input openapi.yaml --out ./server
  openapi2mcpgen generate --input https://example.com/openapi.json --operations GET:/pets,POST:/pets
  openapi2mcpgen --config config.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the OpenAPI/Swagger document")
	flags.String("name", "", "Server name (derived from the document title when omitted)")
	flags.String("out", "", "Output directory (derived from the server name when omitted)")
	flags.String("server-version", "", "Version stamped into the generated package.json")
	flags.String("base-url", "", "Upstream API base URL (first server entry when omitted)")
	flags.StringSlice("operations", nil, "Only expose these operations, as METHOD:path keys")
	flags.Bool("telemetry", false, "Embed telemetry hooks in the generated server")
	flags.String("local-telemetry-package", "", "Use a local file: dependency for the telemetry package")
	flags.String("oauth-authorization-server", "", "Protect the HTTP transport with this OAuth 2.1 authorization server")
	flags.String("oauth-resource-url", "", "Canonical resource URL advertised by the protected server")
	flags.StringSlice("oauth-scopes", nil, "Scopes listed in the protected resource metadata")
	flags.Int("jwks-cache-ttl", 0, "JWKS cache TTL in seconds for inbound token validation")
	flags.String("prompts", "", "YAML file with static prompts to register on the server")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	if flags.Changed("input") {
		value, err := flags.GetString("input")
		if err != nil {
			return err
		}
		cfg.Input = strings.TrimSpace(value)
	}
	if flags.Changed("name") {
		value, err := flags.GetString("name")
		if err != nil {
			return err
		}
		cfg.Name = strings.TrimSpace(value)
	}
	if flags.Changed("out") {
		value, err := flags.GetString("out")
		if err != nil {
			return err
		}
		cfg.Out = strings.TrimSpace(value)
	}
	if flags.Changed("server-version") {
		value, err := flags.GetString("server-version")
		if err != nil {
			return err
		}
		cfg.ServerVersion = strings.TrimSpace(value)
	}
	if flags.Changed("base-url") {
		value, err := flags.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.BaseURL = strings.TrimSpace(value)
	}
	if flags.Changed("operations") {
		value, err := flags.GetStringSlice("operations")
		if err != nil {
			return err
		}
		cfg.Operations = normalizeOperationKeys(value)
		cfg.OperationsSet = true
	}
	if flags.Changed("telemetry") {
		value, err := flags.GetBool("telemetry")
		if err != nil {
			return err
		}
		cfg.Telemetry = value
	}
	if flags.Changed("local-telemetry-package") {
		value, err := flags.GetString("local-telemetry-package")
		if err != nil {
			return err
		}
		cfg.LocalTelemetryPackage = strings.TrimSpace(value)
	}
	if flags.Changed("oauth-authorization-server") {
		value, err := flags.GetString("oauth-authorization-server")
		if err != nil {
			return err
		}
		cfg.OAuthAuthorizationServer = strings.TrimSpace(value)
	}
	if flags.Changed("oauth-resource-url") {
		value, err := flags.GetString("oauth-resource-url")
		if err != nil {
			return err
		}
		cfg.OAuthResourceURL = strings.TrimSpace(value)
	}
	if flags.Changed("oauth-scopes") {
		value, err := flags.GetStringSlice("oauth-scopes")
		if err != nil {
			return err
		}
		cfg.OAuthScopes = trimNonEmpty(value)
	}
	if flags.Changed("jwks-cache-ttl") {
		value, err := flags.GetInt("jwks-cache-ttl")
		if err != nil {
			return err
		}
		cfg.JWKSCacheTTL = value
	}
	if flags.Changed("prompts") {
		value, err := flags.GetString("prompts")
		if err != nil {
			return err
		}
		cfg.PromptsFile = strings.TrimSpace(value)
	}
	if flags.Changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = value
	}
	if flags.Changed("force") {
		value, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.Force = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Name = strings.TrimSpace(c.Name)
	c.Out = strings.TrimSpace(c.Out)
	c.ServerVersion = strings.TrimSpace(c.ServerVersion)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.LocalTelemetryPackage = strings.TrimSpace(c.LocalTelemetryPackage)
	c.OAuthAuthorizationServer = strings.TrimSpace(c.OAuthAuthorizationServer)
	c.OAuthResourceURL = strings.TrimSpace(c.OAuthResourceURL)
	c.OAuthScopes = trimNonEmpty(c.OAuthScopes)
	c.PromptsFile = strings.TrimSpace(c.PromptsFile)
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}
	if c.LocalTelemetryPackage != "" && !c.Telemetry {
		return newUsageError("generate: --local-telemetry-package requires --telemetry")
	}
	if c.OAuthResourceURL != "" && c.OAuthAuthorizationServer == "" {
		return newUsageError("generate: --oauth-resource-url requires --oauth-authorization-server")
	}
	if c.JWKSCacheTTL < 0 {
		return newUsageError("generate: --jwks-cache-ttl must not be negative")
	}
	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	// 1) Load the document (file or http/https URL) with validation and
	// Swagger 2.0 conversion.
	loaded, err := genspec.Load(ctx, cfg.Input)
	if err != nil {
		// Map structured loader errors into friendly messages.
		var se *genspec.SpecError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("spec: %s", se.Message)
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			if se.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
			}
			return newUsageError(msg)
		}
		return err
	}

	// 2) Extract the API model in declaration order.
	model, err := genspec.Extract(loaded.Doc,
		genspec.WithPathOrder(loaded.PathOrder),
		genspec.WithContentTypeOrder(loaded.ContentOrder),
	)
	if err != nil {
		return fmt.Errorf("extract model: %w", err)
	}
	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "[INFO] extracted %d endpoints from %s\n", len(model.Endpoints), loaded.Location)
	}

	// 3) Filter and map endpoints to tools.
	var enabled []string
	if cfg.OperationsSet {
		enabled = cfg.Operations
		if enabled == nil {
			enabled = []string{}
		}
		warnUnknownOperationKeys(enabled, model.Endpoints)
	}
	tools := toolgen.Map(model.Endpoints, enabled)
	if len(tools) == 0 {
		fmt.Fprintln(os.Stderr, "[WARN] no operations selected; the generated server will expose zero tools")
	}

	// 4) Resolve naming, output directory, and emitter config.
	name := cfg.Name
	if name == "" {
		name = deriveServerName(model.Title)
	}
	outDir := cfg.Out
	if outDir == "" {
		outDir = name
		if outDir == "" {
			outDir = "mcp-server"
		}
	}
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = model.BaseURL
	}
	if baseURL == "" {
		fmt.Fprintln(os.Stderr, "[WARN] no base URL in flags or document; set API_BASE_URL when running the server")
	}

	prompts, err := loadPrompts(cfg.PromptsFile)
	if err != nil {
		return err
	}

	ecfg := tsemitter.Config{
		ServerName:                name,
		ServerVersion:             cfg.ServerVersion,
		BaseURL:                   baseURL,
		TelemetryEnabled:          cfg.Telemetry,
		LocalTelemetryPackagePath: cfg.LocalTelemetryPackage,
		Prompts:                   prompts,
	}
	if cfg.OAuthAuthorizationServer != "" {
		ecfg.OAuth2 = &tsemitter.OAuth2Config{
			AuthorizationServerURL: cfg.OAuthAuthorizationServer,
			Scopes:                 cfg.OAuthScopes,
			ResourceURL:            cfg.OAuthResourceURL,
			JWKSCacheTTLSeconds:    cfg.JWKSCacheTTL,
		}
	}

	// 5) Emit, then either print the plan or write the bundle.
	bundle, err := tsemitter.Emit(tools, ecfg, model.SecuritySchemes)
	if err != nil {
		return fmt.Errorf("emit: %w", err)
	}

	if cfg.DryRun {
		printPlan(absOut, bundle.Paths())
		return nil
	}

	if err := tsemitter.WriteBundle(outDir, bundle, cfg.Force); err != nil {
		return wrapOutputError(err, absOut)
	}
	fmt.Fprintf(os.Stdout, "Generated MCP server in %s (%d tools)\n", absOut, len(tools))
	return nil
}

func printPlan(outDir string, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, len(relPaths))
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

// normalizeOperationKeys canonicalizes METHOD:path selection keys: method
// uppercased, path untouched. Entries without a colon are dropped after a
// warning so one typo cannot silently select nothing extra.
func normalizeOperationKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		method, path, ok := strings.Cut(key, ":")
		if !ok || strings.TrimSpace(path) == "" {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring malformed operation key %q (expected METHOD:path)\n", key)
			continue
		}
		out = append(out, strings.ToUpper(strings.TrimSpace(method))+":"+strings.TrimSpace(path))
	}
	if len(out) == 0 {
		return []string{}
	}
	return out
}

func warnUnknownOperationKeys(enabled []string, endpoints []genspec.Endpoint) {
	known := make(map[string]bool, len(endpoints))
	for _, key := range toolgen.AllEndpointKeys(endpoints) {
		known[key] = true
	}
	for _, key := range enabled {
		if !known[key] {
			fmt.Fprintf(os.Stderr, "[WARN] operation key %q matches no operation in the document\n", key)
		}
	}
}

func deriveServerName(title string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		return ""
	}
	t = strings.ToLower(t)
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ")
	t = repl.Replace(t)
	parts := strings.Fields(t)
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "-")
}

func loadPrompts(path string) ([]tsemitter.Prompt, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("read prompts file %q: %v", path, err))
	}
	var prompts []tsemitter.Prompt
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, newUsageError(fmt.Sprintf("parse prompts file %q: %v", path, err))
	}
	for i, p := range prompts {
		if strings.TrimSpace(p.Name) == "" {
			return nil, newUsageError(fmt.Sprintf("prompts file %q: prompt %d has no name", path, i))
		}
		if strings.TrimSpace(p.Text) == "" {
			return nil, newUsageError(fmt.Sprintf("prompts file %q: prompt %q has no text", path, p.Name))
		}
	}
	return prompts, nil
}

func trimNonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		var ferr error
		switch normalizeKey(key) {
		case "input":
			cfg.Input, ferr = castString(value)
		case "name":
			cfg.Name, ferr = castString(value)
		case "out":
			cfg.Out, ferr = castString(value)
		case "serverversion":
			cfg.ServerVersion, ferr = castString(value)
		case "baseurl":
			cfg.BaseURL, ferr = castString(value)
		case "operations":
			var list []string
			list, ferr = castStringSlice(value)
			if ferr == nil {
				cfg.Operations = normalizeOperationKeys(list)
				cfg.OperationsSet = true
			}
		case "telemetry":
			cfg.Telemetry, ferr = cast.ToBoolE(value)
		case "localtelemetrypackage":
			cfg.LocalTelemetryPackage, ferr = castString(value)
		case "oauthauthorizationserver":
			cfg.OAuthAuthorizationServer, ferr = castString(value)
		case "oauthresourceurl":
			cfg.OAuthResourceURL, ferr = castString(value)
		case "oauthscopes":
			var list []string
			list, ferr = castStringSlice(value)
			if ferr == nil {
				cfg.OAuthScopes = trimNonEmpty(list)
			}
		case "jwkscachettl":
			cfg.JWKSCacheTTL, ferr = cast.ToIntE(value)
		case "prompts":
			cfg.PromptsFile, ferr = castString(value)
		case "dryrun":
			cfg.DryRun, ferr = cast.ToBoolE(value)
		case "force":
			cfg.Force, ferr = cast.ToBoolE(value)
		case "verbose":
			cfg.Verbose, ferr = cast.ToBoolE(value)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if ferr != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, ferr))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func castString(v any) (string, error) {
	s, err := cast.ToStringE(v)
	return strings.TrimSpace(s), err
}

// castStringSlice accepts both YAML lists and comma-separated strings.
func castStringSlice(v any) ([]string, error) {
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return trimNonEmpty(strings.Split(s, ",")), nil
	}
	list, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, err
	}
	return trimNonEmpty(list), nil
}
