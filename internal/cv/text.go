package cv

import (
	"fmt"
	"strings"

	"cvbuilder/internal/database"
)

// PlainText 把 CV 拼接为纯文本，作为 AI 调用的输入。
// 调用前应通过 GetFull 加载子表。
func PlainText(cv *database.CV) string {
	parts := make([]string, 0, 1+len(cv.Experiences)+len(cv.Educations)+len(cv.Projects)+1)
	if s := strings.TrimSpace(cv.Summary); s != "" {
		parts = append(parts, "Summary: "+s)
	}
	for _, exp := range cv.Experiences {
		parts = append(parts, fmt.Sprintf("Experience: %s at %s - %s", exp.JobTitle, exp.Company, strings.TrimSpace(exp.Description)))
	}
	for _, edu := range cv.Educations {
		parts = append(parts, fmt.Sprintf("Education: %s from %s", edu.Degree, edu.Institution))
	}
	for _, proj := range cv.Projects {
		parts = append(parts, fmt.Sprintf("Project: %s - %s", proj.Name, strings.TrimSpace(proj.Description)))
	}
	if len(cv.Skills) > 0 {
		names := make([]string, 0, len(cv.Skills))
		for _, s := range cv.Skills {
			names = append(names, s.Name)
		}
		parts = append(parts, "Skills: "+strings.Join(names, ", "))
	}
	return strings.Join(parts, "\n\n")
}

// Validate 返回提交前需要补全的问题列表，为空表示可以提交。
func Validate(cv *database.CV) []string {
	errs := make([]string, 0)
	if strings.TrimSpace(cv.FullName) == "" {
		errs = append(errs, "Full name is required")
	}
	if strings.TrimSpace(cv.Email) == "" {
		errs = append(errs, "Email is required")
	}
	if strings.TrimSpace(cv.Summary) == "" {
		errs = append(errs, "Professional summary is required")
	}
	if len(cv.Experiences) == 0 {
		errs = append(errs, "At least one work experience is required")
	}
	if len(cv.Educations) == 0 {
		errs = append(errs, "At least one education entry is required")
	}
	return errs
}

// Status 描述 CV 的完成情况。
type Status struct {
	CompletionPercentage int      `json:"completion_percentage"`
	IsComplete           bool     `json:"is_complete"`
	MissingFields        []string `json:"missing_fields"`
}

// CompletionStatus 汇总完成度与缺失项，缺失项名称与完成度检查项一一对应。
func CompletionStatus(cv *database.CV) Status {
	missing := make([]string, 0)
	fields := []struct {
		name  string
		value string
	}{
		{"title", cv.Title},
		{"full_name", cv.FullName},
		{"email", cv.Email},
		{"phone", cv.Phone},
		{"location", cv.Location},
		{"summary", cv.Summary},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(cv.Experiences) == 0 {
		missing = append(missing, "experiences")
	}
	if len(cv.Educations) == 0 {
		missing = append(missing, "educations")
	}
	return Status{
		CompletionPercentage: cv.CompletionPercentage,
		IsComplete:           cv.IsComplete,
		MissingFields:        missing,
	}
}
