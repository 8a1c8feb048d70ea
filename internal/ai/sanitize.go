package ai

import (
	"strings"

	"resumechat/internal/types"
)

// dedupStrings trims entries, drops empties, and removes duplicates while
// preserving order
func dedupStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := strings.TrimSpace(s)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// clampInt bounds v to the inclusive range [lo, hi]
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Model output is probabilistic, so structurally valid responses are still
// normalized before they leave the service: list fields are deduplicated and
// score fields clamped to their documented ranges.

func sanitizeSuggestion(s *types.ResumeSuggestion) {
	s.Bullets = dedupStrings(s.Bullets)
	s.Skills = dedupStrings(s.Skills)
}

func sanitizeAnalyze(r *types.AnalyzeResponse) {
	r.Quality = clampInt(r.Quality, 0, 100)
	r.Strengths = dedupStrings(r.Strengths)
	r.Gaps = dedupStrings(r.Gaps)
	r.Risks = dedupStrings(r.Risks)
	r.Recommendations = dedupStrings(r.Recommendations)
	r.Anomalies = dedupStrings(r.Anomalies)
	r.SectionScores.Summary = clampInt(r.SectionScores.Summary, 0, 5)
	r.SectionScores.Experience = clampInt(r.SectionScores.Experience, 0, 5)
	r.SectionScores.Education = clampInt(r.SectionScores.Education, 0, 5)
	r.SectionScores.Skills = clampInt(r.SectionScores.Skills, 0, 5)
	r.KeywordClusters.Core = dedupStrings(r.KeywordClusters.Core)
	r.KeywordClusters.Tools = dedupStrings(r.KeywordClusters.Tools)
	r.KeywordClusters.Soft = dedupStrings(r.KeywordClusters.Soft)
}

func sanitizeKeywords(r *types.KeywordsResponse) {
	r.Skills = dedupStrings(r.Skills)
	r.Keywords = dedupStrings(r.Keywords)
	r.NiceToHave = dedupStrings(r.NiceToHave)
	r.Seniority = strings.TrimSpace(r.Seniority)
}

func sanitizeTailor(r *types.TailorResponse) {
	r.Bullets = dedupStrings(r.Bullets)
	r.Removed = dedupStrings(r.Removed)
	r.Focus = dedupStrings(r.Focus)
}

func sanitizeATSScore(r *types.ATSScoreResponse) {
	r.Score = clampInt(r.Score, 0, 100)
	r.Gaps = dedupStrings(r.Gaps)
	r.Recommendations = dedupStrings(r.Recommendations)
	r.KeywordMatch.Present = dedupStrings(r.KeywordMatch.Present)
	r.KeywordMatch.Missing = dedupStrings(r.KeywordMatch.Missing)
}
