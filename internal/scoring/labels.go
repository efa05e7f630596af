package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type labelRule struct {
	label   string
	pattern *regexp.Regexp
}

var (
	seniorPattern  = regexp.MustCompile(`(?i)\b(senior|lead|manager|principal|director|head of|architect|vp)\b`)
	juniorPattern  = regexp.MustCompile(`(?i)\b(junior|intern|internship|graduate|entry[- ]level|trainee|apprentice)\b`)
	yearsOfPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\+?\s*years?\b`)
)

// 顺序即优先级。
var industryRules = []labelRule{
	{"Data Science", regexp.MustCompile(`(?i)\b(data scien\w*|machine learning|analytics|data analyst|statistics|deep learning)\b`)},
	{"Technology", regexp.MustCompile(`(?i)\b(software|developer|engineer\w*|programming|python|javascript|java|cloud|devops)\b`)},
	{"Marketing", regexp.MustCompile(`(?i)\b(marketing|seo|brand\w*|campaigns?|social media)\b`)},
	{"Finance", regexp.MustCompile(`(?i)\b(finance|financial|accounting|banking|investment|audit\w*)\b`)},
}

var educationRules = []labelRule{
	{"Doctorate", regexp.MustCompile(`(?i)\b(ph\.?d|doctorate|doctoral)\b`)},
	{"Master's Degree", regexp.MustCompile(`(?i)\b(master'?s?|msc|m\.sc|mba|meng)\b`)},
	{"Bachelor's Degree", regexp.MustCompile(`(?i)\b(bachelor'?s?|bsc|b\.sc|beng|undergraduate)\b`)},
	{"Diploma", regexp.MustCompile(`(?i)\b(diploma|associate degree|associate's)\b`)},
}

// ExperienceLevel 根据职级词与工作年限给出经验等级，默认 Mid Level。
func ExperienceLevel(text string) string {
	switch {
	case seniorPattern.MatchString(text):
		return "Senior Level"
	case juniorPattern.MatchString(text):
		return "Entry Level"
	}

	maxYears := -1
	for _, m := range yearsOfPattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxYears {
			maxYears = n
		}
	}
	switch {
	case maxYears >= 7:
		return "Senior Level"
	case maxYears >= 0 && maxYears < 2:
		return "Entry Level"
	default:
		return "Mid Level"
	}
}

// Industry 返回首个匹配的行业标签，否则为 General。
func Industry(text string) string {
	for _, rule := range industryRules {
		if rule.pattern.MatchString(text) {
			return rule.label
		}
	}
	return "General"
}

// EducationLevel 返回最高的学历标签，否则为 Not specified。
func EducationLevel(text string) string {
	for _, rule := range educationRules {
		if rule.pattern.MatchString(text) {
			return rule.label
		}
	}
	return "Not specified"
}

func strengths(f features) []string {
	out := make([]string, 0, listCap)
	if len(f.skills) > 5 {
		out = append(out, fmt.Sprintf("Strong technical skill set (%d skills identified)", len(f.skills)))
	}
	if f.hasAchievements {
		out = append(out, "Quantifiable achievements demonstrate impact")
	}
	if len(f.actionVerbs) >= 3 {
		out = append(out, "Good use of action verbs")
	}
	if f.hasExperience {
		out = append(out, "Relevant work experience included")
	}
	if f.hasEducation {
		out = append(out, "Education background clearly listed")
	}
	if f.words >= 300 && f.words <= 1000 {
		out = append(out, "Appropriate CV length")
	}
	if f.hasEmail {
		out = append(out, "Contact information is easy to find")
	}
	return capList(out, listCap)
}

func weaknesses(f features) []string {
	out := make([]string, 0, listCap)
	if !f.hasAchievements {
		out = append(out, "No quantifiable achievements found")
	}
	if !f.hasSkills {
		out = append(out, "Missing a dedicated skills section")
	}
	if f.words < 200 {
		out = append(out, "CV content is too brief")
	}
	if f.words > 1000 {
		out = append(out, "CV may be too long to scan quickly")
	}
	if len(f.actionVerbs) < 3 {
		out = append(out, "Limited use of action verbs")
	}
	if f.atsMatches < 4 {
		out = append(out, "Missing common industry keywords")
	}
	if !f.hasEmail {
		out = append(out, "Contact email not found")
	}
	return capList(out, listCap)
}

func recommendations(f features, keywords Keywords, jobDescription string) []string {
	out := make([]string, 0, listCap)
	if strings.TrimSpace(jobDescription) != "" && len(keywords.Suggested) > 0 {
		out = append(out, "Include these keywords from the job description: "+strings.Join(keywords.Suggested, ", "))
	}
	if !f.hasAchievements {
		out = append(out, "Add quantified achievements with percentages or numbers")
	}
	if !f.hasSkills {
		out = append(out, "Add a skills section listing your core technical and soft skills")
	}
	if len(f.actionVerbs) < 3 {
		out = append(out, "Start bullet points with strong action verbs such as led or improved")
	}
	if f.words < 200 {
		out = append(out, "Expand your experience descriptions with responsibilities and results")
	}
	if f.words > 1000 {
		out = append(out, "Trim older or less relevant roles to keep the CV concise")
	}
	if f.atsMatches < 4 {
		out = append(out, "Include relevant industry keywords for ATS optimization")
	}
	if !f.hasEmail {
		out = append(out, "Add a professional email address to your contact details")
	}
	if !f.hasPhone {
		out = append(out, "Add a phone number so recruiters can reach you")
	}
	if len(out) == 0 {
		out = append(out, "Tailor your CV to each job description")
	}
	return capList(out, listCap)
}
