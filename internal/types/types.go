package types

// Experience represents a single role in a canonical profile
type Experience struct {
	Company string   `json:"company"`
	Role    string   `json:"role"`
	Start   string   `json:"start,omitempty"`
	End     string   `json:"end,omitempty"`
	Bullets []string `json:"bullets,omitempty"`
}

// Education represents a single education entry in a canonical profile
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
	Year   string `json:"year,omitempty"`
}

// CanonicalProfile is the normalized resume shape used across operations
type CanonicalProfile struct {
	Name       string       `json:"name,omitempty"`
	Title      string       `json:"title,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	Skills     []string     `json:"skills,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
	Education  []Education  `json:"education,omitempty"`
}

// ChatRequest represents an inbound resume-advice chat message
type ChatRequest struct {
	Message string            `json:"message"`
	Profile *CanonicalProfile `json:"profile,omitempty"`
	UserID  string            `json:"user_id,omitempty"`
}

// ResumeSuggestion is the structured advice extracted from the model output.
// RawText carries the verbatim reply when the output is not parseable JSON.
type ResumeSuggestion struct {
	Summary string   `json:"summary,omitempty"`
	Bullets []string `json:"bullets,omitempty"`
	Skills  []string `json:"skills,omitempty"`
	RawText string   `json:"raw_text,omitempty"`
}

// ChatResponse echoes the original message alongside the suggestion
type ChatResponse struct {
	Original   string           `json:"original"`
	Suggestion ResumeSuggestion `json:"suggestion"`
}

// AnalyzeRequest represents the input for profile analysis
type AnalyzeRequest struct {
	Profile *CanonicalProfile `json:"profile"`
}

// SectionScores holds 0-5 integer scores per resume section
type SectionScores struct {
	Summary    int `json:"summary"`
	Experience int `json:"experience"`
	Education  int `json:"education"`
	Skills     int `json:"skills"`
}

// KeywordClusters groups extracted skills by kind
type KeywordClusters struct {
	Core  []string `json:"core"`
	Tools []string `json:"tools"`
	Soft  []string `json:"soft"`
}

// AnalyzeResponse represents the output of profile analysis
type AnalyzeResponse struct {
	Quality         int             `json:"quality"` // 0-100
	Strengths       []string        `json:"strengths"`
	Gaps            []string        `json:"gaps"`
	Risks           []string        `json:"risks"`
	Recommendations []string        `json:"recommendations"`
	SectionScores   SectionScores   `json:"section_scores"`
	KeywordClusters KeywordClusters `json:"keyword_clusters"`
	Anomalies       []string        `json:"anomalies"`
}

// KeywordsRequest represents the input for job-description keyword extraction
type KeywordsRequest struct {
	JobDescription string `json:"job_description"`
}

// KeywordsResponse represents extracted hiring signals
type KeywordsResponse struct {
	Skills     []string `json:"skills"`
	Keywords   []string `json:"keywords"`
	Seniority  string   `json:"seniority,omitempty"`
	NiceToHave []string `json:"nice_to_have"`
}

// TailorRequest represents the input for bullet tailoring
type TailorRequest struct {
	Profile        *CanonicalProfile `json:"profile"`
	JobDescription string            `json:"job_description"`
	Tone           string            `json:"tone,omitempty"`
}

// TailorResponse represents tailored resume bullets
type TailorResponse struct {
	Bullets []string `json:"bullets"` // 4-6 rewritten bullets
	Removed []string `json:"removed"` // 2-4 items to drop
	Focus   []string `json:"focus"`   // 3-5 themes to emphasize
}

// SummaryRequest represents the input for summary generation
type SummaryRequest struct {
	Profile        *CanonicalProfile `json:"profile"`
	JobDescription string            `json:"job_description,omitempty"`
}

// SummaryResponse carries a short professional summary
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// CoverLetterRequest represents the input for cover letter drafting
type CoverLetterRequest struct {
	Profile        *CanonicalProfile `json:"profile"`
	JobDescription string            `json:"job_description"`
	Company        string            `json:"company,omitempty"`
	Role           string            `json:"role,omitempty"`
}

// CoverLetterResponse carries a short cover letter (target <= 180 words)
type CoverLetterResponse struct {
	CoverLetter string `json:"cover_letter"`
}

// ATSScoreRequest represents the input for ATS compatibility scoring
type ATSScoreRequest struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
}

// KeywordMatch splits job-description keywords by presence in the resume
type KeywordMatch struct {
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

// ATSScoreResponse represents the heuristic ATS evaluation
type ATSScoreResponse struct {
	Score           int          `json:"score"` // 0-100
	Gaps            []string     `json:"gaps"`
	Recommendations []string     `json:"recommendations"`
	KeywordMatch    KeywordMatch `json:"keyword_match"`
}
