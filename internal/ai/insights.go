package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cvbuilder/internal/textproc"
)

const insightsTextLimit = 2000

// Insights 是从简历文本中抽取的结构化信息。
type Insights struct {
	Skills       []string `json:"skills"`
	Experience   []string `json:"experience"`
	Education    []string `json:"education"`
	Achievements []string `json:"achievements"`
	Summary      string   `json:"summary"`
}

// JobMatch 是简历与职位的匹配结果。
type JobMatch struct {
	MatchScore      int      `json:"match_score"`
	MatchingSkills  []string `json:"matching_skills"`
	MissingSkills   []string `json:"missing_skills"`
	Recommendations []string `json:"recommendations"`
}

// EmptyInsights 是空简历对应的记录。
func EmptyInsights() Insights {
	return Insights{
		Skills:       []string{},
		Experience:   []string{},
		Education:    []string{},
		Achievements: []string{},
		Summary:      "No CV provided",
	}
}

// MockInsights 是 mock 模式与失败兜底使用的固定记录。
func MockInsights() Insights {
	return Insights{
		Skills:       []string{"Python", "Django", "JavaScript", "SQL", "Team Leadership"},
		Experience:   []string{"5+ years software development", "3 years team lead"},
		Education:    []string{"Bachelor's in Computer Science"},
		Achievements: []string{"Led team of 5 developers", "Reduced load time by 40%", "Increased efficiency by 25%"},
		Summary:      "Experienced full-stack developer with strong backend skills and leadership experience",
	}
}

// MockJobMatch 是 mock 模式与失败兜底使用的固定匹配结果。
func MockJobMatch() JobMatch {
	return JobMatch{
		MatchScore:      85,
		MatchingSkills:  []string{"Python", "Django", "Team Leadership", "Problem-solving"},
		MissingSkills:   []string{"React", "AWS", "Docker"},
		Recommendations: []string{"Highlight leadership experience", "Mention cloud experience", "Add metrics to achievements"},
	}
}

func (i *Insights) fillDefaults() {
	i.Skills = nonNil(i.Skills)
	i.Experience = nonNil(i.Experience)
	i.Education = nonNil(i.Education)
	i.Achievements = nonNil(i.Achievements)
}

func (m *JobMatch) fillDefaults() {
	m.MatchingSkills = nonNil(m.MatchingSkills)
	m.MissingSkills = nonNil(m.MissingSkills)
	m.Recommendations = nonNil(m.Recommendations)
	m.MatchScore = min(max(m.MatchScore, 0), 100)
}

// ExtractInsights 抽取简历要点。
func (c *Client) ExtractInsights(ctx context.Context, cvText string) Result[Insights] {
	if strings.TrimSpace(cvText) == "" {
		return Result[Insights]{Value: EmptyInsights(), Source: SourceFallback, Reason: "empty cv text"}
	}
	if c.MockMode() {
		return mocked(MockInsights())
	}

	prompt := fmt.Sprintf(`Analyze the following CV text and extract structured information. Return a JSON response with:
- skills: list of technical and soft skills
- experience: list of key experience points
- education: list of education/qualifications
- achievements: list of quantifiable achievements
- summary: brief professional summary

CV Text: %s

Return only valid JSON.`, textproc.Truncate(cvText, insightsTextLimit))

	text, err := c.complete(ctx, CompletionRequest{Prompt: prompt, MaxTokens: 800, Temperature: 0.3})
	if err != nil {
		return fallback(c.logger, "extract_insights", MockInsights(), err)
	}

	var insights Insights
	if err := decodeJSONObject(text, &insights); err != nil {
		return fallback(c.logger, "extract_insights", MockInsights(), err)
	}
	insights.fillDefaults()
	return Result[Insights]{Value: insights, Source: SourceAI}
}

// MatchToJob 评估简历要点与职位的匹配度。
func (c *Client) MatchToJob(ctx context.Context, insights Insights, jobTitle, jobDescription string) Result[JobMatch] {
	if c.MockMode() {
		return mocked(MockJobMatch())
	}

	profile, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		return fallback(c.logger, "match_to_job", MockJobMatch(), fmt.Errorf("encode insights: %w", err))
	}

	prompt := fmt.Sprintf(`You are an expert recruiter analyzing how well a candidate's CV matches a job posting.

CANDIDATE PROFILE:
%s

JOB TARGET:
Title: %s
Description: %s

Return a JSON object with:
- match_score: integer 0-100
- matching_skills: list of candidate skills the job asks for
- missing_skills: list of required skills not found in the profile
- recommendations: list of short suggestions for the cover letter

Return only valid JSON.`, profile, jobTitle, textproc.Truncate(jobDescription, letterJobDescriptionLimit))

	text, err := c.complete(ctx, CompletionRequest{
		System:      "You are an expert recruiter who provides detailed job matching analysis.",
		Prompt:      prompt,
		MaxTokens:   800,
		Temperature: 0.3,
	})
	if err != nil {
		return fallback(c.logger, "match_to_job", MockJobMatch(), err)
	}

	var match JobMatch
	if err := decodeJSONObject(text, &match); err != nil {
		return fallback(c.logger, "match_to_job", MockJobMatch(), err)
	}
	match.fillDefaults()
	return Result[JobMatch]{Value: match, Source: SourceAI}
}
