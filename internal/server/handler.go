package server

import (
	"context"
	"encoding/json"
	"net/http"

	"resumechat/internal/ai"
	"resumechat/internal/config"
	"resumechat/internal/observability"
	"resumechat/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// createOperationHandler builds the handler for one LLM-backed endpoint.
// Every endpoint shares the same shape: parse JSON, invoke the service
// operation under metrics tracking, and map errors to status codes.
func createOperationHandler[Req any, Resp any](
	s *Server,
	om *observability.ObservabilityManager,
	op config.Operation,
	metricType string,
	invoke func(ctx context.Context, req Req) (*Resp, *ai.TokenUsage, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumechat.api")
		ctx, span := tracer.Start(ctx, "api."+string(op))
		defer span.End()

		var req Req
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		span.SetAttributes(attribute.String("operation", string(op)))

		metrics := om.GetMetrics()
		var result *Resp
		err := metrics.TrackAIOperationWithTokens(ctx, string(op), func(ctx context.Context) *observability.AIOperationResult {
			output, tokenUsage, opErr := invoke(ctx, req)
			result = output
			return &observability.AIOperationResult{
				Error:      opErr,
				TokenUsage: (*observability.TokenUsage)(tokenUsage),
			}
		}, om)

		if err != nil {
			span.RecordError(err)
			metrics.RecordBusinessMetric(ctx, metricType, false, om,
				attribute.String("operation", string(op)))
			s.writeOperationError(w, r, op, err)
			return
		}

		metrics.RecordBusinessMetric(ctx, metricType, true, om,
			attribute.String("operation", string(op)))
		span.SetAttributes(attribute.Bool("success", true))

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			span.RecordError(err)
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// writeOperationError maps a service error to an HTTP error response
func (s *Server) writeOperationError(w http.ResponseWriter, r *http.Request, op config.Operation, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Operation failed",
			"operation", string(op),
			"endpoint", r.URL.Path)
	}
	writeErrorResponse(w, errorDetail(err), code, status)
}

// createChatHandler builds the /chat endpoint handler
func (s *Server) createChatHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return createOperationHandler(s, om, config.OperationChat, "chat_completed",
		func(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, *ai.TokenUsage, error) {
			return s.AIService.Chat(ctx, req)
		})
}

// createAnalyzeHandler builds the /resume/analyze endpoint handler
func (s *Server) createAnalyzeHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return createOperationHandler(s, om, config.OperationAnalyze, "resume_operation",
		func(ctx context.Context, req types.AnalyzeRequest) (*types.AnalyzeResponse, *ai.TokenUsage, error) {
			return s.AIService.AnalyzeProfile(ctx, req)
		})
}

// createKeywordsHandler builds the /resume/keywords endpoint handler
func (s *Server) createKeywordsHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return createOperationHandler(s, om, config.OperationKeywords, "resume_operation",
		func(ctx context.Context, req types.KeywordsRequest) (*types.KeywordsResponse, *ai.TokenUsage, error) {
			return s.AIService.ExtractKeywords(ctx, req)
		})
}

// createTailorHandler builds the /resume/tailor endpoint handler
func (s *Server) createTailorHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return createOperationHandler(s, om, config.OperationTailor, "resume_operation",
		func(ctx context.Context, req types.TailorRequest) (*types.TailorResponse, *ai.TokenUsage, error) {
			return s.AIService.TailorBullets(ctx, req)
		})
}

// createSummaryHandler builds the /resume/summary endpoint handler
func (s *Server) createSummaryHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return createOperationHandler(s, om, config.OperationSummary, "resume_operation",
		func(ctx context.Context, req types.SummaryRequest) (*types.SummaryResponse, *ai.TokenUsage, error) {
			return s.AIService.WriteSummary(ctx, req)
		})
}

// createCoverLetterHandler builds the /resume/cover-letter endpoint handler
func (s *Server) createCoverLetterHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return createOperationHandler(s, om, config.OperationCoverLetter, "resume_operation",
		func(ctx context.Context, req types.CoverLetterRequest) (*types.CoverLetterResponse, *ai.TokenUsage, error) {
			return s.AIService.WriteCoverLetter(ctx, req)
		})
}

// createATSScoreHandler builds the /resume/ats-score endpoint handler
func (s *Server) createATSScoreHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return createOperationHandler(s, om, config.OperationATSScore, "resume_operation",
		func(ctx context.Context, req types.ATSScoreRequest) (*types.ATSScoreResponse, *ai.TokenUsage, error) {
			return s.AIService.ScoreATS(ctx, req)
		})
}

// createRateLimitMiddleware adds observability to rate limiting
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	originalMiddleware := s.rateLimitMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		return originalMiddleware(func(w http.ResponseWriter, r *http.Request) {
			// Wrap the ResponseWriter to detect rate limit responses
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: 200}

			next(wrapper, r)

			if wrapper.statusCode == http.StatusTooManyRequests {
				metrics := om.GetMetrics()
				metrics.RecordBusinessMetric(r.Context(), "rate_limit_hit", true, om,
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
			}
		})
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
