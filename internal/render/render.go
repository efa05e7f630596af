// Package render 使用 html/template 把 CV 与求职信渲染为 HTML，供预览与 PDF 导出使用。
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"gorm.io/datatypes"

	"cvbuilder/internal/database"
)

// ErrInvalidTemplate 表示模板内容无法解析或无法渲染示例数据。
var ErrInvalidTemplate = errors.New("invalid template")

var funcs = template.FuncMap{
	"date":  formatDate,
	"join":  strings.Join,
	"upper": strings.ToUpper,
	"title": titleCase,
	"list":  jsonList,
	"lines": splitLines,
}

// Render 用 content 渲染 data。
func Render(content string, data any) (string, error) {
	tpl, err := template.New("content").Funcs(funcs).Parse(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// CV 渲染简历；tpl 为 nil 或不是 CV 模板时使用内置版式。
func CV(tpl *database.Template, cv *database.CV) (string, error) {
	content := DefaultCVLayout
	if tpl != nil && tpl.Type == database.TemplateTypeCV && strings.TrimSpace(tpl.Content) != "" {
		content = tpl.Content
	}
	return Render(content, cv)
}

// CoverLetter 渲染求职信；tpl 为 nil 或不是求职信模板时使用内置版式。
func CoverLetter(tpl *database.Template, letter *database.AICoverLetter) (string, error) {
	content := DefaultLetterLayout
	if tpl != nil && tpl.Type == database.TemplateTypeCoverLetter && strings.TrimSpace(tpl.Content) != "" {
		content = tpl.Content
	}
	return Render(content, letter)
}

// Preview 用示例数据渲染模板，用于模板预览与保存前校验。
func Preview(tpl *database.Template) (string, error) {
	if tpl.Type == database.TemplateTypeCoverLetter {
		return Render(tpl.Content, SampleLetter())
	}
	return Render(tpl.Content, SampleCV())
}

// Validate 确认模板可以解析并能渲染示例数据。
func Validate(content, templateType string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidTemplate)
	}
	_, err := Preview(&database.Template{Content: content, Type: templateType})
	if err != nil && !errors.Is(err, ErrInvalidTemplate) {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return err
}

func formatDate(d *database.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format("Jan 2006")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// jsonList 解析 JSON 数组列，格式不合法时返回空。
func jsonList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
