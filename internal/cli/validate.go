package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	genspec "github.com/mark3labs/openapi2mcpgen/internal/spec"
	"github.com/spf13/cobra"
)

// ValidateConfig captures the options for the validate command.
type ValidateConfig struct {
	Input   string
	Verbose bool
}

var validateRunner = runValidate

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check whether an OpenAPI document can be generated from",
		Long: "Resolve an OpenAPI document and report every problem that would block generation. " +
			"Exits non-zero when the document is invalid.",
		Example: strings.TrimSpace(`  openapi2mcpgen validate --input openapi.yaml
  openapi2mcpgen validate --input https://example.com/openapi.json`),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := cmd.Flags().GetString("input")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &ValidateConfig{
				Input:   strings.TrimSpace(input),
				Verbose: verbose,
			}
			return validateRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("input", "", "Path or URL to the OpenAPI/Swagger document")

	return cmd
}

func runValidate(ctx context.Context, cfg *ValidateConfig) error {
	if cfg.Input == "" {
		return newUsageError("validate: --input is required")
	}

	ok, problems := genspec.Validate(ctx, cfg.Input)
	if ok {
		fmt.Fprintf(os.Stdout, "OK: %s is a valid OpenAPI document\n", cfg.Input)
		return nil
	}

	for _, p := range problems {
		fmt.Fprintf(os.Stderr, "- %s\n", p)
	}
	return fmt.Errorf("validate: %s has %d problem(s)", cfg.Input, len(problems))
}
