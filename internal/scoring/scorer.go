// Package scoring 实现不依赖外部服务的简历启发式评分。
//
// 评分公式（所有分数为整数并截断到 [0, 100]）：
//
//	overall = 60 + 10(技能段落) + 10(量化成果) + 10(行为动词) + 5(工作经历段落) + 5(教育段落)
//	ats     = 60 + 5*min(命中的 ATS 关键词数, 6) + 3*min(数字模式出现次数, 3)
//	keyword = 无职位描述时为 75；否则为 |CV 词 ∩ JD 词| * 100 / |JD 词|（已去停用词）
package scoring

import (
	"regexp"
	"strings"

	"cvbuilder/internal/textproc"
)

const (
	overallBase         = 60
	skillsSectionBonus  = 10
	achievementsBonus   = 10
	actionVerbsBonus    = 10
	experienceBonus     = 5
	educationBonus      = 5
	atsBase             = 60
	atsKeywordPoints    = 5
	atsKeywordCap       = 6
	atsNumericPoints    = 3
	atsNumericCap       = 3
	DefaultKeywordScore = 75
	listCap             = 5
	keywordListCap      = 10
)

// ATSKeywords 是 ATS 评分使用的固定关键词表。
var ATSKeywords = []string{
	"python", "javascript", "sql", "project", "management", "team",
	"leadership", "experience", "communication", "agile", "analysis", "development",
}

// ActionVerbs 是识别成就描述的行为动词表。
var ActionVerbs = []string{
	"achieved", "managed", "developed", "implemented", "increased",
	"reduced", "led", "designed", "improved", "launched",
}

var (
	skillsSection     = regexp.MustCompile(`(?i)\b(skills|technologies|competencies)\b`)
	experienceSection = regexp.MustCompile(`(?i)\b(experience|employment|work history)\b`)
	educationSection  = regexp.MustCompile(`(?i)\b(education|degree|university|college)\b`)
	quantified        = regexp.MustCompile(`(?i)\d+\s*%|\$\s?\d+|\b\d+\+?\s*(years?|people|clients|projects|users|members)\b`)
	percentPattern    = regexp.MustCompile(`\d+%`)
	yearsPattern      = regexp.MustCompile(`(?i)\d+\s*years?`)
	wordPattern       = regexp.MustCompile(`[a-z0-9+#]+`)
)

var actionVerbPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(ActionVerbs))
	for i, v := range ActionVerbs {
		patterns[i] = regexp.MustCompile(`\b` + v + `\b`)
	}
	return patterns
}()

var stopWords = toSet([]string{
	"a", "an", "and", "are", "as", "at", "be", "been", "but", "by", "can", "for", "from",
	"has", "have", "he", "her", "his", "i", "if", "in", "into", "is", "it", "its", "of",
	"on", "or", "our", "she", "so", "such", "that", "the", "their", "them", "there",
	"they", "this", "to", "us", "was", "we", "were", "will", "with", "you", "your",
	"who", "what", "which", "while", "would", "should", "must", "about", "also", "all",
	"any", "more", "other", "than", "then", "these", "those", "very", "work", "working",
	"role", "join", "looking", "ideal", "candidate", "etc",
})

// Keywords 是关键词分析结果。
type Keywords struct {
	Present   []string `json:"present"`
	Missing   []string `json:"missing"`
	Suggested []string `json:"suggested"`
}

// Analysis 是一次评分的完整结果。
type Analysis struct {
	OverallScore    int      `json:"overall_score"`
	ATSScore        int      `json:"ats_score"`
	KeywordScore    int      `json:"keyword_score"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	Skills          []string `json:"skills"`
	Keywords        Keywords `json:"keywords"`
	ExperienceLevel string   `json:"experience_level"`
	Industry        string   `json:"industry"`
	EducationLevel  string   `json:"education_level"`
}

// DefaultAnalysis 是空简历的分析结果。
func DefaultAnalysis() Analysis {
	return Analysis{
		Strengths:       []string{},
		Weaknesses:      []string{"No CV content provided"},
		Recommendations: []string{"Please upload a valid CV file"},
		Skills:          []string{},
		Keywords:        Keywords{Present: []string{}, Missing: []string{}, Suggested: []string{}},
		ExperienceLevel: "Not available",
		Industry:        "Not specified",
		EducationLevel:  "Not specified",
	}
}

// Analyze 对简历文本做完整的启发式评估；jobDescription 可为空。
func Analyze(cvText, jobDescription string) Analysis {
	if strings.TrimSpace(cvText) == "" {
		return DefaultAnalysis()
	}

	f := collectFeatures(cvText)
	keywords := keywordMap(cvText, jobDescription)

	return Analysis{
		OverallScore:    OverallScore(cvText),
		ATSScore:        ATSScore(cvText),
		KeywordScore:    KeywordScore(cvText, jobDescription),
		Strengths:       strengths(f),
		Weaknesses:      weaknesses(f),
		Recommendations: recommendations(f, keywords, jobDescription),
		Skills:          f.skills,
		Keywords:        keywords,
		ExperienceLevel: ExperienceLevel(cvText),
		Industry:        Industry(cvText),
		EducationLevel:  EducationLevel(cvText),
	}
}

// OverallScore 根据段落与内容特征计算整体质量分。
func OverallScore(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	f := collectFeatures(text)
	score := overallBase
	if f.hasSkills {
		score += skillsSectionBonus
	}
	if f.hasAchievements {
		score += achievementsBonus
	}
	if len(f.actionVerbs) > 0 {
		score += actionVerbsBonus
	}
	if f.hasExperience {
		score += experienceBonus
	}
	if f.hasEducation {
		score += educationBonus
	}
	return clamp(score)
}

// ATSScore 根据 ATS 关键词命中数与数字模式计算兼容分。
func ATSScore(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	matched := len(matchedATSKeywords(text))
	if matched > atsKeywordCap {
		matched = atsKeywordCap
	}
	numeric := countNumericPatterns(text)
	if numeric > atsNumericCap {
		numeric = atsNumericCap
	}
	return clamp(atsBase + matched*atsKeywordPoints + numeric*atsNumericPoints)
}

// KeywordScore 计算简历与职位描述的关键词重合度，无职位描述时固定为 75。
func KeywordScore(cvText, jobDescription string) int {
	jdWords := significantWords(jobDescription)
	if len(jdWords) == 0 {
		return DefaultKeywordScore
	}
	cvWords := toSet(significantWords(cvText))
	common := 0
	for _, w := range jdWords {
		if _, ok := cvWords[w]; ok {
			common++
		}
	}
	return clamp(common * 100 / len(jdWords))
}

func matchedATSKeywords(text string) []string {
	lower := strings.ToLower(text)
	matched := make([]string, 0, len(ATSKeywords))
	for _, kw := range ATSKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func countNumericPatterns(text string) int {
	return len(percentPattern.FindAllStringIndex(text, -1)) + len(yearsPattern.FindAllStringIndex(text, -1))
}

// significantWords 返回去重后的有效词，保持首次出现的顺序。
func significantWords(text string) []string {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(tokens))
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		words = append(words, tok)
	}
	return words
}

func keywordMap(cvText, jobDescription string) Keywords {
	present := []string{}
	missing := []string{}

	jdWords := significantWords(jobDescription)
	if len(jdWords) == 0 {
		matched := toSet(matchedATSKeywords(cvText))
		for _, kw := range ATSKeywords {
			if _, ok := matched[kw]; ok {
				present = append(present, kw)
			} else {
				missing = append(missing, kw)
			}
		}
		for _, skill := range textproc.ExtractSkills(cvText, nil) {
			if _, ok := matched[strings.ToLower(skill)]; !ok {
				present = append(present, skill)
			}
		}
	} else {
		cvWords := toSet(significantWords(cvText))
		for _, w := range jdWords {
			if _, ok := cvWords[w]; ok {
				present = append(present, w)
			} else {
				missing = append(missing, w)
			}
		}
	}

	present = capList(present, keywordListCap)
	missing = capList(missing, keywordListCap)
	suggested := append([]string{}, capList(missing, listCap)...)
	return Keywords{Present: present, Missing: missing, Suggested: suggested}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

type features struct {
	hasSkills       bool
	hasAchievements bool
	hasExperience   bool
	hasEducation    bool
	hasEmail        bool
	hasPhone        bool
	actionVerbs     []string
	atsMatches      int
	skills          []string
	words           int
}

func collectFeatures(text string) features {
	lower := strings.ToLower(text)
	verbs := make([]string, 0, len(ActionVerbs))
	for i, v := range ActionVerbs {
		if actionVerbPatterns[i].MatchString(lower) {
			verbs = append(verbs, v)
		}
	}
	return features{
		hasSkills:       skillsSection.MatchString(text),
		hasAchievements: quantified.MatchString(text),
		hasExperience:   experienceSection.MatchString(text),
		hasEducation:    educationSection.MatchString(text),
		hasEmail:        textproc.ExtractEmail(text) != "",
		hasPhone:        textproc.ExtractPhone(text) != "",
		actionVerbs:     verbs,
		atsMatches:      len(matchedATSKeywords(text)),
		skills:          textproc.ExtractSkills(text, nil),
		words:           textproc.WordCount(text),
	}
}
