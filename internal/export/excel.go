// Package export 把分析记录导出为 Excel 工作簿。
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"cvbuilder/internal/scoring"
)

const (
	summarySheet  = "Summary"
	analysesSheet = "Analyses"
)

// Row 是导出的一行：一份上传简历与它的分析结果。
type Row struct {
	Filename   string
	Title      string
	AnalyzedAt time.Time
	Source     string
	Analysis   scoring.Analysis
}

var analysesHeaders = []string{
	"File", "Title", "Analyzed At", "Overall", "Grade", "ATS", "Keywords",
	"Experience Level", "Industry", "Education", "Strengths", "Weaknesses", "Missing Keywords", "Source",
}

// AnalysesWorkbook 生成包含汇总页与明细页的 xlsx 文件。
func AnalysesWorkbook(rows []Row, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(analysesSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(f, rows, generatedAt, headerStyle); err != nil {
		return nil, fmt.Errorf("write summary sheet: %w", err)
	}
	if err := writeAnalyses(f, rows, headerStyle); err != nil {
		return nil, fmt.Errorf("write analyses sheet: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, rows []Row, generatedAt time.Time, headerStyle int) error {
	if err := f.SetColWidth(summarySheet, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 24); err != nil {
		return err
	}

	grades := map[string]int{}
	var total int
	for _, r := range rows {
		total += r.Analysis.OverallScore
		grades[scoring.Grade(r.Analysis.OverallScore)]++
	}
	average := 0.0
	if len(rows) > 0 {
		average = float64(total) / float64(len(rows))
	}

	cells := [][]any{
		{"CV Analysis Report", ""},
		{"Generated", generatedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Analyses", len(rows)},
		{"Average Overall Score", fmt.Sprintf("%.1f", average)},
		{"", ""},
		{"Grade", "Count"},
	}
	for _, g := range []string{"A+", "A", "B", "C", "D", "F"} {
		cells = append(cells, []any{g, grades[g]})
	}

	for i, values := range cells {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return err
	}
	return f.SetCellStyle(summarySheet, "A6", "B6", headerStyle)
}

func writeAnalyses(f *excelize.File, rows []Row, headerStyle int) error {
	header := make([]any, len(analysesHeaders))
	for i, h := range analysesHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(analysesSheet, "A1", &header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(analysesHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(analysesSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(analysesSheet, "A", lastCol, 18); err != nil {
		return err
	}

	for i, r := range rows {
		a := r.Analysis
		values := []any{
			r.Filename,
			r.Title,
			r.AnalyzedAt.UTC().Format("2006-01-02 15:04"),
			a.OverallScore,
			scoring.Grade(a.OverallScore),
			a.ATSScore,
			a.KeywordScore,
			a.ExperienceLevel,
			a.Industry,
			a.EducationLevel,
			strings.Join(a.Strengths, "; "),
			strings.Join(a.Weaknesses, "; "),
			strings.Join(a.Keywords.Missing, ", "),
			r.Source,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(analysesSheet, cell, &values); err != nil {
			return err
		}
	}

	return f.SetPanes(analysesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
