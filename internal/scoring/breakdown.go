package scoring

import "strings"

// Breakdown 是对一次已保存分析的汇总视图。
type Breakdown struct {
	Overall           int      `json:"overall"`
	ExperienceLevel   string   `json:"experience_level"`
	ATSCompatibility  int      `json:"ats_compatibility"`
	StrengthsCount    int      `json:"strengths_count"`
	ImprovementsCount int      `json:"improvements_count"`
	KeywordsScore     int      `json:"keywords_score"`
	Grade             string   `json:"grade"`
	Suggestions       []string `json:"suggestions"`
}

// Grade 把分数换算成等级。
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

// Suggestions 根据分数与缺失关键词给出改进建议。
func Suggestions(a Analysis) []string {
	out := make([]string, 0, 4)
	if a.OverallScore < 70 {
		out = append(out, "Consider adding more relevant keywords from job descriptions")
	}
	if a.ATSScore < 80 {
		out = append(out, "Improve ATS compatibility by using standard formatting and keywords")
	}
	if a.ExperienceLevel == "Entry Level" && a.OverallScore < 60 {
		out = append(out, "Add more quantifiable achievements and specific examples")
	}
	if len(a.Keywords.Missing) > 0 {
		out = append(out, "Consider adding these keywords: "+strings.Join(capList(a.Keywords.Missing, listCap), ", "))
	}
	return out
}

// NewBreakdown 汇总分析结果。
func NewBreakdown(a Analysis) Breakdown {
	return Breakdown{
		Overall:           a.OverallScore,
		ExperienceLevel:   a.ExperienceLevel,
		ATSCompatibility:  a.ATSScore,
		StrengthsCount:    len(a.Strengths),
		ImprovementsCount: len(a.Weaknesses),
		KeywordsScore:     clamp(len(a.Keywords.Present) * 2),
		Grade:             Grade(a.OverallScore),
		Suggestions:       Suggestions(a),
	}
}
