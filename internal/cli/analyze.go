package cli

import (
	"context"
	"fmt"

	"resumechat/internal/ai"
	"resumechat/internal/common"
	"resumechat/internal/types"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [profile-file]",
	Short: "Analyze a canonical profile for quality and gaps",
	Long: `Analyze a canonical profile (JSON file) and report its overall quality,
per-section scores, strengths, gaps, risks, keyword clusters, and concrete
recommendations for improving it.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if analyzeOutput.Format == "" {
			analyzeOutput.Format = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(analyzeOutput.Format, cfg.App.SupportedFormats)
	},
	RunE: runAnalyze,
}

var analyzeOutput common.OutputOptions

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput.File, "output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeOutput.Format, "format", "", "Output format: json, text, or markdown")

	// Add completion for format flag
	_ = analyzeCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	buildInput := func(contents []string) (types.AnalyzeRequest, error) {
		if len(contents) != 1 {
			return types.AnalyzeRequest{}, fmt.Errorf("expected 1 file path, got %d", len(contents))
		}
		profile, err := parseProfile(contents[0])
		if err != nil {
			return types.AnalyzeRequest{}, err
		}
		logger.Info("Starting profile analysis",
			"skills", len(profile.Skills),
			"experience_entries", len(profile.Experience),
			"output_format", analyzeOutput.Format)
		return types.AnalyzeRequest{Profile: profile}, nil
	}

	err = common.RunFileCommand(
		cmd.Context(),
		logger,
		analyzeOutput,
		args,
		buildInput,
		func(ctx context.Context, input types.AnalyzeRequest) (*types.AnalyzeResponse, *ai.TokenUsage, error) {
			return aiService.AnalyzeProfile(ctx, input)
		},
	)

	if err != nil {
		return fmt.Errorf("failed to analyze profile: %w", err)
	}
	logger.Info("Profile analysis completed successfully")
	return nil
}
