package ai

import (
	"context"
	"fmt"
	"math"
	"strings"

	"cvbuilder/internal/scoring"
	"cvbuilder/internal/textproc"
)

const (
	analysisTextLimit   = 3000
	missingScoreDefault = 75
	missingLabelDefault = "Not specified"
)

type analysisResponse struct {
	OverallScore    *float64 `json:"overall_score"`
	ATSScore        *float64 `json:"ats_score"`
	KeywordScore    *float64 `json:"keyword_score"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	Skills          []string `json:"skills"`
	ExperienceLevel *string  `json:"experience_level"`
	Industry        *string  `json:"industry"`
	EducationLevel  *string  `json:"education_level"`
}

func scoreOrDefault(v *float64) int {
	if v == nil {
		return missingScoreDefault
	}
	return min(max(int(math.Round(*v)), 0), 100)
}

func labelOrDefault(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return missingLabelDefault
	}
	return strings.TrimSpace(*v)
}

// AnalyzeCV 对简历做综合评估。mock 模式与任何失败都回落到启发式评分。
func (c *Client) AnalyzeCV(ctx context.Context, cvText, jobDescription string) Result[scoring.Analysis] {
	if strings.TrimSpace(cvText) == "" {
		return Result[scoring.Analysis]{Value: scoring.DefaultAnalysis(), Source: SourceFallback, Reason: "empty cv text"}
	}
	heuristic := scoring.Analyze(cvText, jobDescription)
	if c.MockMode() {
		return mocked(heuristic)
	}

	var jd string
	if strings.TrimSpace(jobDescription) != "" {
		jd = fmt.Sprintf("\nTarget Job Description: %s\n", textproc.Truncate(jobDescription, letterJobDescriptionLimit))
	}
	prompt := fmt.Sprintf(`Analyze the following CV and provide a comprehensive assessment. Return a JSON response with:

1. overall_score: Overall quality score (0-100)
2. ats_score: ATS compatibility score (0-100)
3. keyword_score: Keyword optimization score (0-100)
4. strengths: List of 4-6 key strengths
5. weaknesses: List of 4-6 areas for improvement
6. recommendations: List of 4-6 specific recommendations
7. skills: List of identified technical and soft skills
8. experience_level: Brief description of experience level
9. industry: Primary industry focus
10. education_level: Education level identified

CV Text: %s
%s
Return only valid JSON.`, textproc.Truncate(cvText, analysisTextLimit), jd)

	text, err := c.complete(ctx, CompletionRequest{Prompt: prompt, MaxTokens: 1200, Temperature: 0.3})
	if err != nil {
		return fallback(c.logger, "analyze_cv", heuristic, err)
	}

	var resp analysisResponse
	if err := decodeJSONObject(text, &resp); err != nil {
		return fallback(c.logger, "analyze_cv", heuristic, err)
	}

	return Result[scoring.Analysis]{
		Value: scoring.Analysis{
			OverallScore:    scoreOrDefault(resp.OverallScore),
			ATSScore:        scoreOrDefault(resp.ATSScore),
			KeywordScore:    scoreOrDefault(resp.KeywordScore),
			Strengths:       nonNil(resp.Strengths),
			Weaknesses:      nonNil(resp.Weaknesses),
			Recommendations: nonNil(resp.Recommendations),
			Skills:          nonNil(resp.Skills),
			Keywords:        heuristic.Keywords,
			ExperienceLevel: labelOrDefault(resp.ExperienceLevel),
			Industry:        labelOrDefault(resp.Industry),
			EducationLevel:  labelOrDefault(resp.EducationLevel),
		},
		Source: SourceAI,
	}
}
