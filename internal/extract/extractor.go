package extract

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"cvbuilder/internal/textproc"
)

// DefaultTextLimit 是抽取文本的默认最大字符数。
const DefaultTextLimit = 3000

// 抽取失败时写入 ExtractedText 的占位说明，调用方不会收到 error。
const (
	PlaceholderPDFFailed   = "PDF text extraction failed"
	PlaceholderPDFEmpty    = "No text found in PDF"
	PlaceholderDOCXFailed  = "DOCX text extraction failed"
	PlaceholderDOCXEmpty   = "No text found in DOCX"
	PlaceholderUnsupported = "Text extraction not supported for this format"
	PlaceholderEmpty       = "No text content found"
)

var (
	xmlParagraphEnd = regexp.MustCompile(`</w:p>`)
	xmlTag          = regexp.MustCompile(`<[^>]+>`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Extractor 将二进制文档转换为纯文本。
type Extractor struct {
	limit  int
	logger *slog.Logger
}

// NewExtractor 返回 Extractor，limit <= 0 时使用 DefaultTextLimit。
func NewExtractor(limit int, logger *slog.Logger) *Extractor {
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{limit: limit, logger: logger}
}

// Text 按 MIME 类型抽取文本，永远不返回错误：失败时返回说明性占位文本。
// 第二个返回值表示是否真正抽取到了内容。
func (e *Extractor) Text(mimeType string, data []byte) (string, bool) {
	var (
		text string
		err  error
	)

	switch mimeType {
	case MIMEPDF:
		text, err = pdfText(data)
		if err != nil {
			e.logger.Warn("pdf text extraction failed", slog.Any("error", err))
			return PlaceholderPDFFailed, false
		}
		if strings.TrimSpace(text) == "" {
			return PlaceholderPDFEmpty, false
		}
	case MIMEDOCX:
		text, err = docxText(data)
		if err != nil {
			e.logger.Warn("docx text extraction failed", slog.Any("error", err))
			return PlaceholderDOCXFailed, false
		}
		if strings.TrimSpace(text) == "" {
			return PlaceholderDOCXEmpty, false
		}
	case MIMEText:
		text = string(bytes.ToValidUTF8(data, nil))
		if strings.TrimSpace(text) == "" {
			return PlaceholderEmpty, false
		}
	default:
		return PlaceholderUnsupported, false
	}

	text = strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
	return textproc.Truncate(text, e.limit), true
}

func pdfText(data []byte) (text string, err error) {
	// ledongthuc/pdf 在遇到损坏文件时可能 panic。
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return buf.String(), nil
}

func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	content = xmlParagraphEnd.ReplaceAllString(content, "\n")
	content = xmlTag.ReplaceAllString(content, "")
	return unescapeXML(content), nil
}

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}
