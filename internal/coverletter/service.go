// Package coverletter 串联简历要点抽取、职位匹配与信件生成，并保存生成结果。
package coverletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gorm.io/gorm"

	"cvbuilder/internal/ai"
	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/metrics"
	"cvbuilder/internal/ratelimit"
	"cvbuilder/internal/textproc"
)

const snapshotLimit = 500

var (
	ErrNotFound        = errors.New("cover letter not found")
	ErrSourceNotFound  = errors.New("cv source not found")
	ErrNoSource        = errors.New("cv_id, uploaded_cv_id or cv_text is required")
	ErrInvalidTone     = errors.New("invalid tone")
	ErrInvalidTemplate = errors.New("invalid template type")
	ErrQuotaExceeded   = errors.New("daily cover letter limit reached")
)

// GenerateInput 是生成求职信的输入。CVID、UploadedCVID、CVText 三选一，按此顺序取第一个。
type GenerateInput struct {
	CVID           *uint
	UploadedCVID   *uint
	CVText         string
	JobTitle       string
	CompanyName    string
	JobDescription string
	Tone           string
	TemplateType   string
}

// Service 负责求职信的生成与持久化。
type Service struct {
	db     *gorm.DB
	cvs    *cv.Service
	ai     *ai.Client
	quota  *ratelimit.Daily
	logger *slog.Logger
}

// NewService 构造 Service；quota 为 nil 时不限制生成次数。
func NewService(db *gorm.DB, cvs *cv.Service, aiClient *ai.Client, quota *ratelimit.Daily, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, cvs: cvs, ai: aiClient, quota: quota, logger: logger}
}

// IsValidationError 判断错误是否应返回 400。
func IsValidationError(err error) bool {
	return errors.Is(err, ai.ErrValidation) ||
		errors.Is(err, ErrNoSource) ||
		errors.Is(err, ErrInvalidTone) ||
		errors.Is(err, ErrInvalidTemplate)
}

func validateStyle(tone, templateType string) error {
	if tone != "" && !slices.Contains(database.Tones, tone) {
		return fmt.Errorf("%w %q", ErrInvalidTone, tone)
	}
	if templateType != "" && !slices.Contains(database.LetterTemplateTypes, templateType) {
		return fmt.Errorf("%w %q", ErrInvalidTemplate, templateType)
	}
	return nil
}

// Generate 生成并保存一封求职信。
func (s *Service) Generate(ctx context.Context, userID uint, in GenerateInput) (*database.AICoverLetter, error) {
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.JobDescription = strings.TrimSpace(in.JobDescription)
	if in.JobTitle == "" || in.JobDescription == "" {
		return nil, fmt.Errorf("%w: job title and description are required", ai.ErrValidation)
	}
	if err := validateStyle(in.Tone, in.TemplateType); err != nil {
		return nil, err
	}

	letter := database.AICoverLetter{
		UserID:         userID,
		JobTitle:       in.JobTitle,
		CompanyName:    strings.TrimSpace(in.CompanyName),
		JobDescription: in.JobDescription,
		Tone:           defaultString(in.Tone, database.ToneProfessional),
		TemplateType:   defaultString(in.TemplateType, database.LetterTemplateTypes[0]),
	}

	var cvText string
	switch {
	case in.CVID != nil:
		full, err := s.cvs.GetFull(ctx, userID, *in.CVID)
		if err != nil {
			return nil, sourceError(err)
		}
		letter.CVID = &full.ID
		cvText = cv.PlainText(full)
	case in.UploadedCVID != nil:
		uploaded, err := s.uploadedCV(ctx, userID, *in.UploadedCVID)
		if err != nil {
			return nil, err
		}
		letter.UploadedCVID = &uploaded.ID
		cvText = uploadedText(uploaded)
	case strings.TrimSpace(in.CVText) != "":
		cvText = strings.TrimSpace(in.CVText)
	default:
		return nil, ErrNoSource
	}

	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.write(ctx, &letter, cvText); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&letter).Error; err != nil {
		return nil, fmt.Errorf("create cover letter: %w", err)
	}
	return &letter, nil
}

// Regenerate 使用已保存的职位信息重新生成，tone 非空时覆盖原语气。并发调用时以最后一次写入为准。
func (s *Service) Regenerate(ctx context.Context, userID, id uint, tone string) (*database.AICoverLetter, error) {
	tone = strings.TrimSpace(tone)
	if err := validateStyle(tone, ""); err != nil {
		return nil, err
	}
	letter, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if tone != "" {
		letter.Tone = tone
	}

	cvText := letter.CVSnapshot
	switch {
	case letter.CVID != nil:
		if full, err := s.cvs.GetFull(ctx, userID, *letter.CVID); err == nil {
			cvText = cv.PlainText(full)
		} else if !errors.Is(err, cv.ErrNotFound) {
			return nil, err
		}
	case letter.UploadedCVID != nil:
		if uploaded, err := s.uploadedCV(ctx, userID, *letter.UploadedCVID); err == nil {
			cvText = uploadedText(uploaded)
		} else if !errors.Is(err, ErrSourceNotFound) {
			return nil, err
		}
	}

	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.write(ctx, letter, cvText); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(letter).Select("generated_letter", "tone", "cv_snapshot", "source").Updates(letter).Error; err != nil {
		return nil, fmt.Errorf("update cover letter: %w", err)
	}
	return letter, nil
}

// write 运行要点抽取、职位匹配与生成三步，把结果写入 letter。
func (s *Service) write(ctx context.Context, letter *database.AICoverLetter, cvText string) error {
	insights := s.ai.ExtractInsights(ctx, cvText)
	match := s.ai.MatchToJob(ctx, insights.Value, letter.JobTitle, letter.JobDescription)
	result, err := s.ai.GenerateCoverLetter(ctx, insights.Value, match.Value, ai.LetterRequest{
		JobTitle:       letter.JobTitle,
		CompanyName:    letter.CompanyName,
		JobDescription: letter.JobDescription,
		Tone:           letter.Tone,
		TemplateType:   letter.TemplateType,
	})
	if err != nil {
		return err
	}

	letter.GeneratedLetter = result.Value
	letter.CVSnapshot = textproc.Truncate(cvText, snapshotLimit)
	letter.Source = string(result.Source)
	metrics.ObserveAIResult("generate_cover_letter", letter.Source)
	if result.Degraded() {
		s.logger.Info("cover letter generated without ai",
			slog.String("source", letter.Source),
			slog.String("reason", result.Reason),
		)
	}
	return nil
}

func (s *Service) checkQuota(ctx context.Context, userID uint) error {
	ok, err := s.quota.Allow(ctx, userID)
	if err != nil {
		// Redis 不可用时放行。
		s.logger.Warn("cover letter quota check failed", slog.Any("error", err))
		return nil
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}

// List 返回用户的全部求职信，按创建时间倒序。
func (s *Service) List(ctx context.Context, userID uint) ([]database.AICoverLetter, error) {
	var letters []database.AICoverLetter
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&letters).Error; err != nil {
		return nil, fmt.Errorf("list cover letters: %w", err)
	}
	return letters, nil
}

// Get 返回属于该用户的求职信。
func (s *Service) Get(ctx context.Context, userID, id uint) (*database.AICoverLetter, error) {
	var letter database.AICoverLetter
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&letter).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query cover letter: %w", err)
	}
	return &letter, nil
}

// Update 修改求职信的可编辑字段；空值表示不修改。
func (s *Service) Update(ctx context.Context, letter *database.AICoverLetter, patch Patch) error {
	if err := validateStyle(patch.Tone, patch.TemplateType); err != nil {
		return err
	}
	if patch.JobTitle != nil {
		title := strings.TrimSpace(*patch.JobTitle)
		if title == "" {
			return fmt.Errorf("%w: job title cannot be blank", ai.ErrValidation)
		}
		letter.JobTitle = title
	}
	if patch.CompanyName != nil {
		letter.CompanyName = strings.TrimSpace(*patch.CompanyName)
	}
	if patch.JobDescription != nil {
		desc := strings.TrimSpace(*patch.JobDescription)
		if desc == "" {
			return fmt.Errorf("%w: job description cannot be blank", ai.ErrValidation)
		}
		letter.JobDescription = desc
	}
	if patch.GeneratedLetter != nil {
		letter.GeneratedLetter = *patch.GeneratedLetter
	}
	if patch.Tone != "" {
		letter.Tone = patch.Tone
	}
	if patch.TemplateType != "" {
		letter.TemplateType = patch.TemplateType
	}
	if err := s.db.WithContext(ctx).Save(letter).Error; err != nil {
		return fmt.Errorf("save cover letter: %w", err)
	}
	return nil
}

// Patch 描述可编辑字段，指针为 nil 表示不修改。
type Patch struct {
	JobTitle        *string `json:"job_title"`
	CompanyName     *string `json:"company_name"`
	JobDescription  *string `json:"job_description"`
	GeneratedLetter *string `json:"generated_letter"`
	Tone            string  `json:"tone"`
	TemplateType    string  `json:"template_type"`
}

// Delete 删除属于该用户的求职信。
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&database.AICoverLetter{})
	if res.Error != nil {
		return fmt.Errorf("delete cover letter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) uploadedCV(ctx context.Context, userID, id uint) (*database.UploadedCV, error) {
	var uploaded database.UploadedCV
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&uploaded).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("query uploaded cv: %w", err)
	}
	return &uploaded, nil
}

func uploadedText(uploaded *database.UploadedCV) string {
	if !uploaded.Processed {
		return ""
	}
	return textproc.CleanText(uploaded.ExtractedText)
}

func sourceError(err error) error {
	if errors.Is(err, cv.ErrNotFound) || errors.Is(err, cv.ErrInvalidCVID) {
		return ErrSourceNotFound
	}
	return err
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
