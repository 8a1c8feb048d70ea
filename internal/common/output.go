package common

import (
	"fmt"
	"slices"

	"resumechat/internal/errors"
	"resumechat/internal/formatters"
)

// OutputOptions selects where and how a command result is emitted
type OutputOptions struct {
	File   string
	Format string
}

// ValidateOutputFormat validates format against the configured supported
// formats. An empty supported list means no restriction.
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 || slices.Contains(supportedFormats, format) {
		return nil
	}
	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// EmitResult renders data in the requested format and writes it to the
// output file, or to stdout when no file is set.
func EmitResult(logger *errors.Logger, data any, opts OutputOptions) error {
	output, err := formatters.GlobalRegistry.Format(data, opts.Format)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to format output as %s", opts.Format), err)
	}

	if opts.File == "" {
		fmt.Print(output)
		return nil
	}

	if err := WriteOutputFile(opts.File, output); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("Output written successfully",
			"file", opts.File, "format", opts.Format)
	}
	return nil
}
