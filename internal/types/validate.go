package types

import (
	"strings"

	"resumechat/internal/errors"
)

// Validation rejects requests before any provider call is made. Each method
// returns a validation error suitable for a 4xx response.

func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"message must not be empty", nil)
	}
	return nil
}

func (r *AnalyzeRequest) Validate() error {
	if r.Profile == nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"profile is required", nil)
	}
	return nil
}

func (r *KeywordsRequest) Validate() error {
	if strings.TrimSpace(r.JobDescription) == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"job_description must not be empty", nil)
	}
	return nil
}

func (r *TailorRequest) Validate() error {
	if r.Profile == nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"profile is required", nil)
	}
	if strings.TrimSpace(r.JobDescription) == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"job_description must not be empty", nil)
	}
	return nil
}

func (r *SummaryRequest) Validate() error {
	if r.Profile == nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"profile is required", nil)
	}
	return nil
}

func (r *CoverLetterRequest) Validate() error {
	if r.Profile == nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"profile is required", nil)
	}
	if strings.TrimSpace(r.JobDescription) == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"job_description must not be empty", nil)
	}
	return nil
}

func (r *ATSScoreRequest) Validate() error {
	if strings.TrimSpace(r.ResumeText) == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"resume_text must not be empty", nil)
	}
	if strings.TrimSpace(r.JobDescription) == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"job_description must not be empty", nil)
	}
	return nil
}
