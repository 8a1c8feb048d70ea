package ai

import (
	"reflect"
	"testing"

	"resumechat/internal/types"
)

func TestDedupStrings(t *testing.T) {
	in := []string{" Go ", "Go", "", "  ", "Kubernetes", "Go"}
	got := dedupStrings(in)
	want := []string{"Go", "Kubernetes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedupStrings(%v) = %v, want %v", in, got, want)
	}
}

func TestDedupStringsPreservesOrder(t *testing.T) {
	in := []string{"c", "a", "b", "a", "c"}
	got := dedupStrings(in)
	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedupStrings(%v) = %v, want %v", in, got, want)
	}
}

func TestClampInt(t *testing.T) {
	cases := []struct {
		v, lo, hi, want int
	}{
		{-5, 0, 100, 0},
		{150, 0, 100, 100},
		{42, 0, 100, 42},
		{7, 0, 5, 5},
		{0, 0, 5, 0},
	}
	for _, tc := range cases {
		if got := clampInt(tc.v, tc.lo, tc.hi); got != tc.want {
			t.Errorf("clampInt(%d, %d, %d) = %d, want %d", tc.v, tc.lo, tc.hi, got, tc.want)
		}
	}
}

func TestSanitizeATSScore(t *testing.T) {
	resp := types.ATSScoreResponse{
		Score:           110,
		Gaps:            []string{"no metrics", "no metrics"},
		Recommendations: []string{" add keywords "},
		KeywordMatch: types.KeywordMatch{
			Present: []string{"go", "go", "docker"},
			Missing: []string{"", "terraform"},
		},
	}
	sanitizeATSScore(&resp)

	if resp.Score != 100 {
		t.Errorf("Expected score clamped to 100, got %d", resp.Score)
	}
	if len(resp.Gaps) != 1 {
		t.Errorf("Expected deduplicated gaps, got %v", resp.Gaps)
	}
	if resp.Recommendations[0] != "add keywords" {
		t.Errorf("Expected trimmed recommendation, got %q", resp.Recommendations[0])
	}
	if !reflect.DeepEqual(resp.KeywordMatch.Present, []string{"go", "docker"}) {
		t.Errorf("Unexpected present keywords: %v", resp.KeywordMatch.Present)
	}
	if !reflect.DeepEqual(resp.KeywordMatch.Missing, []string{"terraform"}) {
		t.Errorf("Unexpected missing keywords: %v", resp.KeywordMatch.Missing)
	}
}

func TestSanitizeKeywordsTrimsSeniority(t *testing.T) {
	resp := types.KeywordsResponse{
		Skills:    []string{"Go"},
		Seniority: "  senior  ",
	}
	sanitizeKeywords(&resp)
	if resp.Seniority != "senior" {
		t.Errorf("Expected trimmed seniority, got %q", resp.Seniority)
	}
}
