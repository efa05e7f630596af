package ai

import (
	"context"
	"fmt"
	"strings"

	"cvbuilder/internal/textproc"
)

const letterJobDescriptionLimit = 1000

// LetterRequest 是生成求职信所需的职位信息与风格。
type LetterRequest struct {
	JobTitle       string
	CompanyName    string
	JobDescription string
	Tone           string
	TemplateType   string
}

type letterContext struct {
	skills       string
	firstSkill   string
	achievements string
	experience   string
	education    string
	summary      string
}

func newLetterContext(insights Insights) letterContext {
	lc := letterContext{
		skills:       "relevant technical skills",
		firstSkill:   "software development",
		achievements: "- Strong problem-solving abilities\n- Excellent communication skills\n- Team collaboration",
		experience:   "professional experience",
		education:    "relevant educational background",
		summary:      "experienced professional",
	}
	if len(insights.Skills) > 0 {
		lc.skills = strings.Join(insights.Skills[:min(5, len(insights.Skills))], ", ")
		lc.firstSkill = insights.Skills[0]
	}
	if len(insights.Achievements) > 0 {
		lines := make([]string, 0, 3)
		for _, a := range insights.Achievements[:min(3, len(insights.Achievements))] {
			lines = append(lines, "- "+a)
		}
		lc.achievements = strings.Join(lines, "\n")
	}
	if len(insights.Experience) > 0 {
		lc.experience = insights.Experience[0]
	}
	if len(insights.Education) > 0 {
		lc.education = strings.Join(insights.Education, ", ")
	}
	if s := strings.TrimSpace(insights.Summary); s != "" {
		lc.summary = s
	}
	return lc
}

// GenerateCoverLetter 生成求职信。职位名称或描述为空时返回 ErrValidation 且不发起请求；
// 其余失败均转换为包含职位名称的通用信件。
func (c *Client) GenerateCoverLetter(ctx context.Context, insights Insights, match JobMatch, req LetterRequest) (Result[string], error) {
	req.JobTitle = strings.TrimSpace(req.JobTitle)
	if req.JobTitle == "" || strings.TrimSpace(req.JobDescription) == "" {
		return Result[string]{}, fmt.Errorf("%w: job title and description are required", ErrValidation)
	}
	if req.Tone == "" {
		req.Tone = "professional"
	}
	if req.TemplateType == "" {
		req.TemplateType = "standard"
	}

	lc := newLetterContext(insights)
	if c.MockMode() {
		return mocked(mockLetter(req.JobTitle, lc)), nil
	}

	text, err := c.complete(ctx, CompletionRequest{
		Prompt:      letterPrompt(req, match, lc),
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	if err != nil {
		return fallback(c.logger, "generate_cover_letter", genericLetter(req.JobTitle), err), nil
	}
	return Result[string]{Value: strings.TrimSpace(text), Source: SourceAI}, nil
}

func letterPrompt(req LetterRequest, match JobMatch, lc letterContext) string {
	var sb strings.Builder
	sb.WriteString("Generate a professional cover letter for the following job application:\n\n")
	fmt.Fprintf(&sb, "Job Title: %s\n", req.JobTitle)
	if req.CompanyName != "" {
		fmt.Fprintf(&sb, "Company: %s\n", req.CompanyName)
	}
	fmt.Fprintf(&sb, "Job Description: %s\n\n", textproc.Truncate(req.JobDescription, letterJobDescriptionLimit))

	sb.WriteString("Candidate Background:\n")
	fmt.Fprintf(&sb, "- Skills: %s\n", lc.skills)
	fmt.Fprintf(&sb, "- Experience: %s\n", lc.experience)
	fmt.Fprintf(&sb, "- Education: %s\n", lc.education)
	fmt.Fprintf(&sb, "- Achievements:\n%s\n", lc.achievements)
	fmt.Fprintf(&sb, "- Summary: %s\n", lc.summary)
	if len(match.MatchingSkills) > 0 {
		fmt.Fprintf(&sb, "- Skills matching the role: %s\n", strings.Join(match.MatchingSkills, ", "))
	}
	if len(match.MissingSkills) > 0 {
		fmt.Fprintf(&sb, "- Gaps to address positively: %s\n", strings.Join(match.MissingSkills, ", "))
	}

	fmt.Fprintf(&sb, "\nTone: %s\nTemplate: %s\n\n", req.Tone, req.TemplateType)
	sb.WriteString(`Requirements:
- Professional and engaging
- Highlight relevant skills and experience
- Keep to 3-4 paragraphs and no more than 400 words
- Include specific achievements when relevant
- End with strong call to action
- Address to "Dear Hiring Manager"`)
	return sb.String()
}

func mockLetter(jobTitle string, lc letterContext) string {
	return fmt.Sprintf(`Dear Hiring Manager,

I am writing to express my strong interest in the %s position. With my experience in %s and proven track record, I believe I would be a valuable addition to your organization.

Throughout my career, I have demonstrated expertise in %s. My background includes %s, which has prepared me well for this role.

Key achievements that align with your requirements include:
%s

I am excited about the opportunity to bring my skills and experience to your team and contribute to your continued success. I would welcome the chance to discuss how my background and enthusiasm can benefit your organization.

Thank you for considering my application. I look forward to hearing from you.

Sincerely,
[Your Name]`, jobTitle, lc.firstSkill, lc.skills, lc.experience, lc.achievements)
}

func genericLetter(jobTitle string) string {
	return fmt.Sprintf(`Dear Hiring Manager,

I am writing to express my interest in the %s position at your organization. Based on the job description, I believe my skills and experience make me a strong candidate for this role.

My background includes experience in software development and various technical skills that align with your requirements. I am passionate about contributing to innovative projects and working collaboratively with teams to achieve business objectives.

I would welcome the opportunity to discuss how my experience and enthusiasm can contribute to your team's success. Thank you for considering my application.

Sincerely,
[Your Name]`, jobTitle)
}
