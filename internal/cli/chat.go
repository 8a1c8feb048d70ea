package cli

import (
	"fmt"

	"resumechat/internal/ai"
	"resumechat/internal/common"
	"resumechat/internal/types"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the resume advisor a single question",
	Long: `Send one resume question to the configured LLM provider and print the
structured advice. Pass --profile to include a canonical profile (JSON file)
as context for the answer.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if chatOutput.Format == "" {
			chatOutput.Format = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(chatOutput.Format, cfg.App.SupportedFormats)
	},
	RunE: runChat,
}

var (
	chatOutput      common.OutputOptions
	chatProfileFile string
)

func init() {
	chatCmd.Flags().StringVarP(&chatOutput.File, "output", "o", "", "Output file path (default: stdout)")
	chatCmd.Flags().StringVar(&chatOutput.Format, "format", "", "Output format: json, text, or markdown")
	chatCmd.Flags().StringVar(&chatProfileFile, "profile", "", "Canonical profile JSON file to include as context")

	// Add completion for format flag
	_ = chatCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runChat(cmd *cobra.Command, args []string) error {
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

	req := types.ChatRequest{Message: args[0]}

	if chatProfileFile != "" {
		contents, err := common.ReadInputFiles(logger, chatProfileFile)
		if err != nil {
			return err
		}
		profile, err := parseProfile(contents[0])
		if err != nil {
			return err
		}
		req.Profile = profile
	}

	logger.Info("Sending chat message",
		"message_chars", len(req.Message),
		"has_profile", req.Profile != nil,
		"output_format", chatOutput.Format)

	result, tokenUsage, err := aiService.Chat(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}

	if tokenUsage != nil {
		logger.Info("AI token usage",
			"input_tokens", tokenUsage.InputTokens,
			"output_tokens", tokenUsage.OutputTokens,
			"total_tokens", tokenUsage.TotalTokens)
	}

	return common.EmitResult(logger, result, chatOutput)
}
