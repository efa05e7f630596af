// Package extract 负责上传简历的校验与纯文本抽取。
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes 是上传文件的默认大小上限（5MB）。
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// 支持的 MIME 类型。
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDOC  = "application/msword"
	MIMEText = "text/plain"
)

var (
	ErrEmptyFile         = errors.New("empty file is not allowed")
	ErrFileTooLarge      = errors.New("file size exceeds maximum limit")
	ErrUnsupportedType   = errors.New("file type is not supported")
	ErrExtensionMismatch = errors.New("file extension does not match file type")
)

// allowedTypes 映射 MIME 类型到允许的扩展名。
var allowedTypes = map[string][]string{
	MIMEPDF:  {".pdf"},
	MIMEDOCX: {".docx"},
	MIMEDOC:  {".doc"},
	MIMEText: {".txt"},
}

// Validator 按内容嗅探校验上传文件，而不是信任扩展名或客户端 Content-Type。
type Validator struct {
	MaxBytes int64
}

// NewValidator 返回 Validator，maxBytes <= 0 时使用 DefaultMaxBytes。
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{MaxBytes: maxBytes}
}

// CheckSize 只校验大小，便于在读取文件内容之前提前拒绝。
func (v *Validator) CheckSize(size int64) error {
	if size > v.MaxBytes {
		return fmt.Errorf("%w of %dMB", ErrFileTooLarge, v.MaxBytes/(1024*1024))
	}
	if size == 0 {
		return ErrEmptyFile
	}
	return nil
}

// Validate 校验文件大小、嗅探类型与扩展名，返回规范化后的 MIME 类型。
func (v *Validator) Validate(filename string, data []byte) (string, error) {
	if err := v.CheckSize(int64(len(data))); err != nil {
		return "", err
	}

	detected := mimetype.Detect(data)
	var matched string
	for candidate := range allowedTypes {
		if detected.Is(candidate) {
			matched = candidate
			break
		}
	}
	if matched == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, detected.String())
	}

	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range allowedTypes[matched] {
		if ext == allowed {
			return matched, nil
		}
	}
	return "", fmt.Errorf("%w: extension %q, type %q", ErrExtensionMismatch, ext, matched)
}

// IsValidationError 判断错误是否来自文件校验，调用方据此返回 4xx。
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrExtensionMismatch)
}
