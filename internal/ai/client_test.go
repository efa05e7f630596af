package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/config"
	"cvbuilder/internal/scoring"
)

type fakeCompleter struct {
	calls    int
	response string
	err      error
	last     CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.calls++
	f.last = req
	return f.response, f.err
}

func TestNewFromConfig_PlaceholderKeyIsMock(t *testing.T) {
	for _, key := range []string{"", "  ", PlaceholderAPIKey} {
		c := NewFromConfig(context.Background(), config.AIConfig{Provider: "openai", APIKey: key}, nil)
		assert.True(t, c.MockMode(), "key %q", key)
	}

	c := NewFromConfig(context.Background(), config.AIConfig{Provider: "openai", APIKey: "sk-test", Timeout: time.Second}, nil)
	assert.False(t, c.MockMode())
}

func TestNewFromConfig_VertexWithoutProjectIsMock(t *testing.T) {
	c := NewFromConfig(context.Background(), config.AIConfig{Provider: "vertex"}, nil)
	assert.True(t, c.MockMode())
}

func TestExtractInsights_EmptyText(t *testing.T) {
	fake := &fakeCompleter{}
	c := New(fake, 0, nil)

	res := c.ExtractInsights(context.Background(), "   ")
	assert.Equal(t, "No CV provided", res.Value.Summary)
	assert.Empty(t, res.Value.Skills)
	assert.Empty(t, res.Value.Experience)
	assert.Empty(t, res.Value.Education)
	assert.Empty(t, res.Value.Achievements)
	assert.Zero(t, fake.calls)
}

func TestExtractInsights_MockMode(t *testing.T) {
	res := New(nil, 0, nil).ExtractInsights(context.Background(), "some cv")
	assert.Equal(t, SourceMock, res.Source)
	assert.Equal(t, MockInsights(), res.Value)
}

func TestExtractInsights_ParsesFencedJSONAndFillsDefaults(t *testing.T) {
	fake := &fakeCompleter{response: "Sure!\n```json\n{\"skills\": [\"Go\"], \"summary\": \"Backend dev\"}\n```"}
	c := New(fake, time.Second, nil)

	res := c.ExtractInsights(context.Background(), strings.Repeat("x", 5000))
	require.Equal(t, SourceAI, res.Source)
	assert.Equal(t, []string{"Go"}, res.Value.Skills)
	assert.Equal(t, []string{}, res.Value.Experience)
	assert.Equal(t, "Backend dev", res.Value.Summary)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 800, fake.last.MaxTokens)
	assert.NotContains(t, fake.last.Prompt, strings.Repeat("x", insightsTextLimit+1))
}

func TestExtractInsights_FailureReturnsCannedRecord(t *testing.T) {
	for _, fake := range []*fakeCompleter{
		{err: errors.New("connection refused")},
		{response: "not json at all"},
		{response: "   "},
	} {
		res := New(fake, 0, nil).ExtractInsights(context.Background(), "cv text")
		assert.Equal(t, SourceFallback, res.Source)
		assert.NotEmpty(t, res.Reason)
		assert.Equal(t, MockInsights(), res.Value)
	}
}

func TestMatchToJob_Fallback(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("timeout")}
	res := New(fake, 0, nil).MatchToJob(context.Background(), MockInsights(), "Dev", "Build things")
	assert.True(t, res.Degraded())
	assert.Equal(t, 85, res.Value.MatchScore)
	assert.Equal(t, []string{"React", "AWS", "Docker"}, res.Value.MissingSkills)
}

func TestMatchToJob_Live(t *testing.T) {
	fake := &fakeCompleter{response: `{"match_score": 140, "matching_skills": ["Go"]}`}
	res := New(fake, 0, nil).MatchToJob(context.Background(), MockInsights(), "Dev", "Go services")
	require.Equal(t, SourceAI, res.Source)
	assert.Equal(t, 100, res.Value.MatchScore)
	assert.Equal(t, []string{"Go"}, res.Value.MatchingSkills)
	assert.Equal(t, []string{}, res.Value.MissingSkills)
}

func TestGenerateCoverLetter_BlankTitleFailsFast(t *testing.T) {
	fake := &fakeCompleter{response: "letter"}
	c := New(fake, 0, nil)

	_, err := c.GenerateCoverLetter(context.Background(), MockInsights(), MockJobMatch(), LetterRequest{
		JobTitle:       "  ",
		JobDescription: "Build APIs",
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = c.GenerateCoverLetter(context.Background(), MockInsights(), MockJobMatch(), LetterRequest{
		JobTitle: "Backend Engineer",
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, fake.calls)
}

func TestGenerateCoverLetter_MockContainsJobTitle(t *testing.T) {
	res, err := New(nil, 0, nil).GenerateCoverLetter(context.Background(), MockInsights(), MockJobMatch(), LetterRequest{
		JobTitle:       "Backend Engineer",
		JobDescription: "Build APIs in Go",
		Tone:           "professional",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceMock, res.Source)
	assert.Contains(t, res.Value, "Backend Engineer")
	assert.True(t, strings.HasPrefix(res.Value, "Dear Hiring Manager,"))
	assert.Contains(t, res.Value, "- Led team of 5 developers")
}

func TestGenerateCoverLetter_LiveTruncatesJobDescription(t *testing.T) {
	fake := &fakeCompleter{response: "  Dear Hiring Manager, hello.  "}
	res, err := New(fake, 0, nil).GenerateCoverLetter(context.Background(), EmptyInsights(), MockJobMatch(), LetterRequest{
		JobTitle:       "Data Engineer",
		JobDescription: strings.Repeat("y", 3000),
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear Hiring Manager, hello.", res.Value)
	assert.Equal(t, 1, fake.calls)
	assert.Contains(t, fake.last.Prompt, "Dear Hiring Manager")
	assert.Contains(t, fake.last.Prompt, "relevant technical skills")
	assert.NotContains(t, fake.last.Prompt, strings.Repeat("y", letterJobDescriptionLimit+1))
}

func TestGenerateCoverLetter_FailureReturnsGenericLetter(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("503")}
	res, err := New(fake, 0, nil).GenerateCoverLetter(context.Background(), MockInsights(), MockJobMatch(), LetterRequest{
		JobTitle:       "Site Reliability Engineer",
		JobDescription: "Keep things up",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.Value, "Site Reliability Engineer")
}

func TestAnalyzeCV_FillsMissingFields(t *testing.T) {
	fake := &fakeCompleter{response: `{"overall_score": 88, "strengths": ["Clear layout"]}`}
	res := New(fake, 0, nil).AnalyzeCV(context.Background(), "Python developer", "")
	require.Equal(t, SourceAI, res.Source)
	assert.Equal(t, 88, res.Value.OverallScore)
	assert.Equal(t, 75, res.Value.ATSScore)
	assert.Equal(t, 75, res.Value.KeywordScore)
	assert.Equal(t, []string{"Clear layout"}, res.Value.Strengths)
	assert.Equal(t, []string{}, res.Value.Weaknesses)
	assert.Equal(t, "Not specified", res.Value.Industry)
}

func TestAnalyzeCV_FallsBackToHeuristic(t *testing.T) {
	text := "Skills: Python, SQL. Experience: developed APIs, increased revenue 20%."
	fake := &fakeCompleter{response: "{broken"}
	res := New(fake, 0, nil).AnalyzeCV(context.Background(), text, "")
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, scoring.Analyze(text, ""), res.Value)

	empty := New(fake, 0, nil).AnalyzeCV(context.Background(), "", "")
	assert.Equal(t, scoring.DefaultAnalysis(), empty.Value)
}
