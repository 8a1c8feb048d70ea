package cli

import (
	"context"
	"fmt"

	"resumechat/internal/ai"
	"resumechat/internal/common"
	"resumechat/internal/types"

	"github.com/spf13/cobra"
)

var tailorCmd = &cobra.Command{
	Use:   "tailor [profile-file] [job-description-file]",
	Short: "Tailor resume bullets for a specific job description",
	Long: `Rewrite the bullets of a canonical profile (JSON file) for a specific
job description. The output lists rewritten bullets, items worth dropping,
and the themes to emphasize.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if tailorOutput.Format == "" {
			tailorOutput.Format = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(tailorOutput.Format, cfg.App.SupportedFormats)
	},
	RunE: runTailor,
}

var (
	tailorOutput common.OutputOptions
	tailorTone   string
)

func init() {
	tailorCmd.Flags().StringVarP(&tailorOutput.File, "output", "o", "", "Output file path (default: stdout)")
	tailorCmd.Flags().StringVar(&tailorOutput.Format, "format", "", "Output format: json, text, or markdown")
	tailorCmd.Flags().StringVar(&tailorTone, "tone", "", "Writing tone for the rewritten bullets (default: concise)")

	// Add completion for format flag
	_ = tailorCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runTailor(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	aiService, err := ai.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() {
		if err := aiService.Close(); err != nil {
			logger.Warn("Failed to close AI service", "error", err)
		}
	}()

	buildInput := func(contents []string) (types.TailorRequest, error) {
		if len(contents) != 2 {
			return types.TailorRequest{}, fmt.Errorf("expected 2 file paths, got %d", len(contents))
		}
		profile, err := parseProfile(contents[0])
		if err != nil {
			return types.TailorRequest{}, err
		}
		logger.Info("Starting bullet tailoring",
			"experience_entries", len(profile.Experience),
			"job_chars", len(contents[1]),
			"tone", tailorTone,
			"output_format", tailorOutput.Format)
		return types.TailorRequest{
			Profile:        profile,
			JobDescription: contents[1],
			Tone:           tailorTone,
		}, nil
	}

	err = common.RunFileCommand(
		cmd.Context(),
		logger,
		tailorOutput,
		args,
		buildInput,
		func(ctx context.Context, input types.TailorRequest) (*types.TailorResponse, *ai.TokenUsage, error) {
			return aiService.TailorBullets(ctx, input)
		},
	)

	if err != nil {
		return fmt.Errorf("failed to tailor bullets: %w", err)
	}
	logger.Info("Bullet tailoring completed successfully")
	return nil
}
