package common

import (
	"context"
	"fmt"

	"resumechat/internal/ai"
	"resumechat/internal/errors"
)

// BuildInputFunc turns file contents into the typed request of one operation
type BuildInputFunc[In any] func(contents []string) (In, error)

// CallFunc invokes one AI service operation
type CallFunc[In, Out any] func(ctx context.Context, input In) (Out, *ai.TokenUsage, error)

// RunFileCommand is the shared skeleton for file-driven CLI commands: read
// and validate the input files, build the request, invoke the operation,
// and emit the formatted result.
func RunFileCommand[In, Out any](
	ctx context.Context,
	logger *errors.Logger,
	opts OutputOptions,
	paths []string,
	build BuildInputFunc[In],
	call CallFunc[In, Out],
) error {
	contents, err := ReadInputFiles(logger, paths...)
	if err != nil {
		return err
	}

	input, err := build(contents)
	if err != nil {
		return fmt.Errorf("failed to create input from file contents: %w", err)
	}

	result, tokenUsage, err := call(ctx, input)
	if err != nil {
		return err
	}

	if tokenUsage != nil && logger != nil {
		logger.Info("AI token usage",
			"input_tokens", tokenUsage.InputTokens,
			"output_tokens", tokenUsage.OutputTokens,
			"total_tokens", tokenUsage.TotalTokens)
	}

	return EmitResult(logger, result, opts)
}
