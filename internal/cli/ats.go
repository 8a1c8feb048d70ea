package cli

import (
	"context"
	"fmt"

	"resumechat/internal/ai"
	"resumechat/internal/common"
	"resumechat/internal/types"

	"github.com/spf13/cobra"
)

var atsCmd = &cobra.Command{
	Use:   "ats-score [resume-file] [job-description-file]",
	Short: "Score a resume against a job description for ATS compatibility",
	Long: `Compute a heuristic ATS compatibility score for a plain-text resume
against a job description. The report includes which job keywords are present
or missing in the resume, the main gaps, and recommendations for closing them.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if atsOutput.Format == "" {
			atsOutput.Format = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(atsOutput.Format, cfg.App.SupportedFormats)
	},
	RunE: runATSScore,
}

var atsOutput common.OutputOptions

func init() {
	atsCmd.Flags().StringVarP(&atsOutput.File, "output", "o", "", "Output file path (default: stdout)")
	atsCmd.Flags().StringVar(&atsOutput.Format, "format", "", "Output format: json, text, or markdown")

	// Add completion for format flag
	_ = atsCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runATSScore(cmd *cobra.Command, args []string) error {
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

	buildInput := func(contents []string) (types.ATSScoreRequest, error) {
		if len(contents) != 2 {
			return types.ATSScoreRequest{}, fmt.Errorf("expected 2 file paths, got %d", len(contents))
		}
		logger.Info("Starting ATS scoring",
			"resume_chars", len(contents[0]),
			"job_chars", len(contents[1]),
			"output_format", atsOutput.Format)
		return types.ATSScoreRequest{
			ResumeText:     contents[0],
			JobDescription: contents[1],
		}, nil
	}

	err = common.RunFileCommand(
		cmd.Context(),
		logger,
		atsOutput,
		args,
		buildInput,
		func(ctx context.Context, input types.ATSScoreRequest) (*types.ATSScoreResponse, *ai.TokenUsage, error) {
			return aiService.ScoreATS(ctx, input)
		},
	)

	if err != nil {
		return fmt.Errorf("failed to score resume: %w", err)
	}
	logger.Info("ATS scoring completed successfully")
	return nil
}
