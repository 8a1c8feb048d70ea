package ai

import (
	"encoding/json"

	"resumechat/internal/config"
	"resumechat/internal/types"
)

// DefaultSystemPrompts holds the built-in system prompt per operation.
// Custom prompts from configuration or prompt files take precedence.
var DefaultSystemPrompts = map[config.Operation]string{
	config.OperationChat: "You are a resume-writing assistant. Be concise and helpful. " +
		"When you can, answer with a JSON object containing \"summary\", \"bullets\" and \"skills\"; " +
		"otherwise answer in plain text.",
	config.OperationAnalyze: "You are a resume analyst for software/tech resumes. " +
		"Analyze the provided profile and return only the requested JSON fields. " +
		"Provide concrete insights based on the resume content. Use factual phrasing.",
	config.OperationKeywords: "You extract skills and hiring signals from job descriptions. " +
		"Return only the requested fields. Be concise and useful for screening.",
	config.OperationTailor: "You write quantified, impact-focused resume bullets aligned to a job. " +
		"Use truthful details from the profile and prioritize measurable outcomes.",
	config.OperationSummary: "You write crisp professional summaries (2-3 lines). " +
		"Be specific, outcome-oriented, and aligned with the target role.",
	config.OperationCoverLetter: "You draft short, specific cover letters (at most 180 words), " +
		"tailored to the company and role. Focus on fit, outcomes, and authenticity.",
	config.OperationATSScore: "You are an ATS heuristic evaluator. " +
		"Compare resume content to the job description and produce a fair, actionable assessment.",
}

// DefaultUserPrompts holds the built-in user prompt template per operation.
// Templates are fmt format strings; the argument order is documented next to
// each entry.
var DefaultUserPrompts = map[config.Operation]string{
	// args: message, optional profile context
	config.OperationChat: "%s%s",

	// args: profile JSON
	config.OperationAnalyze: `Canonical profile (JSON):
%s

Return a JSON object EXACTLY in this shape:
{
  "quality": 0,
  "strengths": [],
  "gaps": [],
  "risks": [],
  "recommendations": [],
  "section_scores": {"summary": 0, "experience": 0, "education": 0, "skills": 0},
  "keyword_clusters": {"core": [], "tools": [], "soft": []},
  "anomalies": []
}
Rules:
- DO NOT return empty lists unless truly none exist. If something is unclear, infer from the profile.
- "quality": 0-100. Start at 50, add up to +25 for strong experience, +15 for quantified impact, +10 for breadth (tools/cloud), subtract for missing sections.
- "strengths": at least 2 concrete strengths.
- "gaps": at least 2 concrete gaps (e.g., "no metrics", "missing cloud certs").
- "risks": mention timeline issues (date gaps, frequent short roles) if any; otherwise [].
- "recommendations": 3-5 actionable next steps.
- "section_scores": integers 0-5 for summary/experience/education/skills.
- "keyword_clusters": split skills into core (languages/primary stacks), tools (DevOps, cloud, frameworks), soft (communication/leadership).
- "anomalies": inconsistent dates, overlapping roles, etc.
Return ONLY the JSON object.`,

	// args: job description
	config.OperationKeywords: `Job description:
%s

Return a JSON object exactly like this shape:
{
  "skills": [],
  "keywords": [],
  "seniority": null,
  "nice_to_have": []
}
Return ONLY the JSON object.`,

	// args: profile JSON, job description, tone
	config.OperationTailor: `Profile:
%s

Job description:
%s

Tone: %s

Return a JSON object with this shape:
{
  "bullets": [],
  "removed": [],
  "focus": []
}
Return ONLY the JSON object.`,

	// args: profile JSON, optional job description
	config.OperationSummary: `Profile:
%s

Job description (optional):
%s

Return a JSON object:
{ "summary": "" }
Return ONLY the JSON object.`,

	// args: profile JSON, job description, company, role
	config.OperationCoverLetter: `Profile:
%s

Job description:
%s

Company: %s
Role: %s

Return a JSON object:
{ "cover_letter": "" }
Return ONLY the JSON object.`,

	// args: resume text, job description
	config.OperationATSScore: `Resume:
%s

Job description:
%s

Return a JSON object with this shape:
{
  "score": 0,
  "gaps": [],
  "recommendations": [],
  "keyword_match": {
    "present": [],
    "missing": []
  }
}
Return ONLY the JSON object.`,
}

// resolvePrompt selects the prompt with file-loaded content first, then the
// configured value, then the built-in default
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}

// profileJSON serializes a canonical profile for prompt embedding. A nil
// profile becomes an empty object so templates stay well-formed.
func profileJSON(profile *types.CanonicalProfile) string {
	if profile == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
