package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"resumechat/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "ChatResponse", &ChatTextFormatter{})
	registry.RegisterFormatter("markdown", "ChatResponse", &ChatMarkdownFormatter{})
	registry.RegisterFormatter("text", "AnalyzeResponse", &AnalyzeTextFormatter{})
	registry.RegisterFormatter("markdown", "AnalyzeResponse", &AnalyzeMarkdownFormatter{})
	registry.RegisterFormatter("text", "TailorResponse", &TailorTextFormatter{})
	registry.RegisterFormatter("markdown", "TailorResponse", &TailorMarkdownFormatter{})
	registry.RegisterFormatter("text", "ATSScoreResponse", &ATSScoreTextFormatter{})
	registry.RegisterFormatter("markdown", "ATSScoreResponse", &ATSScoreMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

func getDataType(data any) string {
	switch data.(type) {
	case types.ChatResponse, *types.ChatResponse:
		return "ChatResponse"
	case types.AnalyzeResponse, *types.AnalyzeResponse:
		return "AnalyzeResponse"
	case types.TailorResponse, *types.TailorResponse:
		return "TailorResponse"
	case types.ATSScoreResponse, *types.ATSScoreResponse:
		return "ATSScoreResponse"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

func asChatResponse(data any) (*types.ChatResponse, error) {
	switch v := data.(type) {
	case types.ChatResponse:
		return &v, nil
	case *types.ChatResponse:
		return v, nil
	default:
		return nil, fmt.Errorf("expected ChatResponse, got %T", data)
	}
}

func asAnalyzeResponse(data any) (*types.AnalyzeResponse, error) {
	switch v := data.(type) {
	case types.AnalyzeResponse:
		return &v, nil
	case *types.AnalyzeResponse:
		return v, nil
	default:
		return nil, fmt.Errorf("expected AnalyzeResponse, got %T", data)
	}
}

func asTailorResponse(data any) (*types.TailorResponse, error) {
	switch v := data.(type) {
	case types.TailorResponse:
		return &v, nil
	case *types.TailorResponse:
		return v, nil
	default:
		return nil, fmt.Errorf("expected TailorResponse, got %T", data)
	}
}

func asATSScoreResponse(data any) (*types.ATSScoreResponse, error) {
	switch v := data.(type) {
	case types.ATSScoreResponse:
		return &v, nil
	case *types.ATSScoreResponse:
		return v, nil
	default:
		return nil, fmt.Errorf("expected ATSScoreResponse, got %T", data)
	}
}

func writeList(output *strings.Builder, items []string) {
	for _, item := range items {
		output.WriteString(fmt.Sprintf("- %s\n", item))
	}
	output.WriteString("\n")
}

// ChatTextFormatter handles text formatting for chat responses
type ChatTextFormatter struct{}

func (ctf *ChatTextFormatter) Format(data any) (string, error) {
	result, err := asChatResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== RESUME ADVICE ===\n\n")

	if result.Suggestion.RawText != "" {
		output.WriteString(result.Suggestion.RawText)
		output.WriteString("\n")
		return output.String(), nil
	}

	if result.Suggestion.Summary != "" {
		output.WriteString("Summary:\n")
		output.WriteString(result.Suggestion.Summary)
		output.WriteString("\n\n")
	}
	if len(result.Suggestion.Bullets) > 0 {
		output.WriteString("Suggested bullets:\n")
		writeList(&output, result.Suggestion.Bullets)
	}
	if len(result.Suggestion.Skills) > 0 {
		output.WriteString("Skills to highlight:\n")
		writeList(&output, result.Suggestion.Skills)
	}

	return output.String(), nil
}

func (ctf *ChatTextFormatter) SupportedType() string {
	return "ChatResponse"
}

// ChatMarkdownFormatter handles markdown formatting for chat responses
type ChatMarkdownFormatter struct{}

func (cmf *ChatMarkdownFormatter) Format(data any) (string, error) {
	result, err := asChatResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Resume Advice\n\n")

	if result.Suggestion.RawText != "" {
		output.WriteString(result.Suggestion.RawText)
		output.WriteString("\n")
		return output.String(), nil
	}

	if result.Suggestion.Summary != "" {
		output.WriteString("## Summary\n\n")
		output.WriteString(result.Suggestion.Summary)
		output.WriteString("\n\n")
	}
	if len(result.Suggestion.Bullets) > 0 {
		output.WriteString("## Suggested Bullets\n\n")
		writeList(&output, result.Suggestion.Bullets)
	}
	if len(result.Suggestion.Skills) > 0 {
		output.WriteString("## Skills to Highlight\n\n")
		writeList(&output, result.Suggestion.Skills)
	}

	return output.String(), nil
}

func (cmf *ChatMarkdownFormatter) SupportedType() string {
	return "ChatResponse"
}

// AnalyzeTextFormatter handles text formatting for profile analysis results
type AnalyzeTextFormatter struct{}

func (atf *AnalyzeTextFormatter) Format(data any) (string, error) {
	result, err := asAnalyzeResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== PROFILE ANALYSIS ===\n\n")
	output.WriteString(fmt.Sprintf("Overall Quality: %d/100\n\n", result.Quality))

	output.WriteString("Section scores (0-5):\n")
	output.WriteString(fmt.Sprintf("- Summary:    %d\n", result.SectionScores.Summary))
	output.WriteString(fmt.Sprintf("- Experience: %d\n", result.SectionScores.Experience))
	output.WriteString(fmt.Sprintf("- Education:  %d\n", result.SectionScores.Education))
	output.WriteString(fmt.Sprintf("- Skills:     %d\n\n", result.SectionScores.Skills))

	if len(result.Strengths) > 0 {
		output.WriteString("Strengths:\n")
		writeList(&output, result.Strengths)
	}
	if len(result.Gaps) > 0 {
		output.WriteString("Gaps:\n")
		writeList(&output, result.Gaps)
	}
	if len(result.Risks) > 0 {
		output.WriteString("Risks:\n")
		writeList(&output, result.Risks)
	}
	if len(result.Anomalies) > 0 {
		output.WriteString("Anomalies:\n")
		writeList(&output, result.Anomalies)
	}

	output.WriteString("Keyword clusters:\n")
	output.WriteString(fmt.Sprintf("- Core:  %s\n", strings.Join(result.KeywordClusters.Core, ", ")))
	output.WriteString(fmt.Sprintf("- Tools: %s\n", strings.Join(result.KeywordClusters.Tools, ", ")))
	output.WriteString(fmt.Sprintf("- Soft:  %s\n\n", strings.Join(result.KeywordClusters.Soft, ", ")))

	if len(result.Recommendations) > 0 {
		output.WriteString("=== RECOMMENDATIONS ===\n")
		for i, recommendation := range result.Recommendations {
			output.WriteString(fmt.Sprintf("%d. %s\n", i+1, recommendation))
		}
	}

	return output.String(), nil
}

func (atf *AnalyzeTextFormatter) SupportedType() string {
	return "AnalyzeResponse"
}

// AnalyzeMarkdownFormatter handles markdown formatting for profile analysis results
type AnalyzeMarkdownFormatter struct{}

func (amf *AnalyzeMarkdownFormatter) Format(data any) (string, error) {
	result, err := asAnalyzeResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Profile Analysis\n\n")
	output.WriteString(fmt.Sprintf("**Overall Quality:** %d/100\n\n", result.Quality))

	output.WriteString("## Section Scores\n\n")
	output.WriteString(fmt.Sprintf("| Section | Score |\n|---|---|\n| Summary | %d |\n| Experience | %d |\n| Education | %d |\n| Skills | %d |\n\n",
		result.SectionScores.Summary, result.SectionScores.Experience,
		result.SectionScores.Education, result.SectionScores.Skills))

	if len(result.Strengths) > 0 {
		output.WriteString("## Strengths\n\n")
		writeList(&output, result.Strengths)
	}
	if len(result.Gaps) > 0 {
		output.WriteString("## Gaps\n\n")
		writeList(&output, result.Gaps)
	}
	if len(result.Risks) > 0 {
		output.WriteString("## Risks\n\n")
		writeList(&output, result.Risks)
	}
	if len(result.Anomalies) > 0 {
		output.WriteString("## Anomalies\n\n")
		writeList(&output, result.Anomalies)
	}

	output.WriteString("## Keyword Clusters\n\n")
	output.WriteString(fmt.Sprintf("- **Core:** %s\n", strings.Join(result.KeywordClusters.Core, ", ")))
	output.WriteString(fmt.Sprintf("- **Tools:** %s\n", strings.Join(result.KeywordClusters.Tools, ", ")))
	output.WriteString(fmt.Sprintf("- **Soft:** %s\n\n", strings.Join(result.KeywordClusters.Soft, ", ")))

	if len(result.Recommendations) > 0 {
		output.WriteString("## Recommendations\n\n")
		for i, recommendation := range result.Recommendations {
			output.WriteString(fmt.Sprintf("%d. %s\n", i+1, recommendation))
		}
	}

	return output.String(), nil
}

func (amf *AnalyzeMarkdownFormatter) SupportedType() string {
	return "AnalyzeResponse"
}

// TailorTextFormatter handles text formatting for tailored bullets
type TailorTextFormatter struct{}

func (ttf *TailorTextFormatter) Format(data any) (string, error) {
	result, err := asTailorResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== TAILORED BULLETS ===\n\n")
	writeList(&output, result.Bullets)

	if len(result.Removed) > 0 {
		output.WriteString("Consider removing:\n")
		writeList(&output, result.Removed)
	}
	if len(result.Focus) > 0 {
		output.WriteString("Themes to emphasize:\n")
		writeList(&output, result.Focus)
	}

	return output.String(), nil
}

func (ttf *TailorTextFormatter) SupportedType() string {
	return "TailorResponse"
}

// TailorMarkdownFormatter handles markdown formatting for tailored bullets
type TailorMarkdownFormatter struct{}

func (tmf *TailorMarkdownFormatter) Format(data any) (string, error) {
	result, err := asTailorResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Tailored Bullets\n\n")
	writeList(&output, result.Bullets)

	if len(result.Removed) > 0 {
		output.WriteString("## Consider Removing\n\n")
		writeList(&output, result.Removed)
	}
	if len(result.Focus) > 0 {
		output.WriteString("## Themes to Emphasize\n\n")
		writeList(&output, result.Focus)
	}

	return output.String(), nil
}

func (tmf *TailorMarkdownFormatter) SupportedType() string {
	return "TailorResponse"
}

// ATSScoreTextFormatter handles text formatting for ATS score results
type ATSScoreTextFormatter struct{}

func (astf *ATSScoreTextFormatter) Format(data any) (string, error) {
	result, err := asATSScoreResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== ATS COMPATIBILITY ===\n\n")
	output.WriteString(fmt.Sprintf("Score: %d/100\n\n", result.Score))

	if len(result.KeywordMatch.Present) > 0 {
		output.WriteString("Keywords present:\n")
		writeList(&output, result.KeywordMatch.Present)
	}
	if len(result.KeywordMatch.Missing) > 0 {
		output.WriteString("Keywords missing:\n")
		writeList(&output, result.KeywordMatch.Missing)
	}
	if len(result.Gaps) > 0 {
		output.WriteString("Gaps:\n")
		writeList(&output, result.Gaps)
	}
	if len(result.Recommendations) > 0 {
		output.WriteString("=== RECOMMENDATIONS ===\n")
		for i, recommendation := range result.Recommendations {
			output.WriteString(fmt.Sprintf("%d. %s\n", i+1, recommendation))
		}
	}

	return output.String(), nil
}

func (astf *ATSScoreTextFormatter) SupportedType() string {
	return "ATSScoreResponse"
}

// ATSScoreMarkdownFormatter handles markdown formatting for ATS score results
type ATSScoreMarkdownFormatter struct{}

func (asmf *ATSScoreMarkdownFormatter) Format(data any) (string, error) {
	result, err := asATSScoreResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# ATS Compatibility\n\n")
	output.WriteString(fmt.Sprintf("**Score:** %d/100\n\n", result.Score))

	if len(result.KeywordMatch.Present) > 0 {
		output.WriteString("## Keywords Present\n\n")
		writeList(&output, result.KeywordMatch.Present)
	}
	if len(result.KeywordMatch.Missing) > 0 {
		output.WriteString("## Keywords Missing\n\n")
		writeList(&output, result.KeywordMatch.Missing)
	}
	if len(result.Gaps) > 0 {
		output.WriteString("## Gaps\n\n")
		writeList(&output, result.Gaps)
	}
	if len(result.Recommendations) > 0 {
		output.WriteString("## Recommendations\n\n")
		for i, recommendation := range result.Recommendations {
			output.WriteString(fmt.Sprintf("%d. %s\n", i+1, recommendation))
		}
	}

	return output.String(), nil
}

func (asmf *ATSScoreMarkdownFormatter) SupportedType() string {
	return "ATSScoreResponse"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
