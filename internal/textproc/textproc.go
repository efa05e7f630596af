// Package textproc 提供简历文本的清洗与信息抽取工具。
package textproc

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespacePattern  = regexp.MustCompile(`\s+`)
	disallowedPattern  = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:@-]`)
	emailPattern       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern       = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	filenameStrip      = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	filenameSeparators = regexp.MustCompile(`[-\s]+`)
)

// CommonSkills 是默认的技能词表，顺序即输出顺序。
var CommonSkills = []string{
	"Python", "Java", "JavaScript", "React", "Node.js", "SQL", "MongoDB",
	"AWS", "Docker", "Kubernetes", "Git", "Linux", "Machine Learning",
	"Data Analysis", "Project Management", "Agile", "Scrum", "Leadership",
}

// CleanText 折叠空白并移除基础标点以外的符号。
func CleanText(text string) string {
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = disallowedPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractEmail 返回文本中第一个邮箱，找不到时返回空串。
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// ExtractPhone 返回文本中第一个电话号码，找不到时返回空串。
func ExtractPhone(text string) string {
	return strings.TrimSpace(phonePattern.FindString(text))
}

// ExtractSkills 按词表顺序返回文本中出现的技能（大小写不敏感）。
// vocabulary 为空时使用 CommonSkills。
func ExtractSkills(text string, vocabulary []string) []string {
	if len(vocabulary) == 0 {
		vocabulary = CommonSkills
	}
	lower := strings.ToLower(text)
	found := make([]string, 0)
	seen := make(map[string]struct{}, len(vocabulary))
	for _, skill := range vocabulary {
		key := strings.ToLower(skill)
		if _, ok := seen[key]; ok {
			continue
		}
		if strings.Contains(lower, key) {
			seen[key] = struct{}{}
			found = append(found, skill)
		}
	}
	return found
}

// SanitizeFilename 去掉特殊字符，空白与连字符折叠为单个 "-"，并转小写。
func SanitizeFilename(name string) string {
	name = filenameStrip.ReplaceAllString(name, "")
	name = filenameSeparators.ReplaceAllString(name, "-")
	return strings.ToLower(name)
}

// Truncate 按字符截断，不会切断多字节字符。
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// WordCount 返回以空白分隔的词数。
func WordCount(text string) int {
	return len(strings.Fields(text))
}
