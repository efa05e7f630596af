// Package analysis 对上传的简历执行分析，并维护与 UploadedCV 一对一的分析记录。
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvbuilder/internal/ai"
	"cvbuilder/internal/database"
	"cvbuilder/internal/extract"
	"cvbuilder/internal/metrics"
	"cvbuilder/internal/scoring"
	"cvbuilder/internal/textproc"
)

// 分析记录的来源。
const (
	SourceAI        = "ai"
	SourceHeuristic = "heuristic"
)

// ErrNotFound 表示分析记录不存在或不属于当前用户。
var ErrNotFound = errors.New("analysis not found")

// ObjectReader 读取对象存储中的原始文件。
type ObjectReader interface {
	ReadObject(ctx context.Context, objectKey string, limit int64) ([]byte, error)
}

// Service 负责分析的执行与持久化。
type Service struct {
	db        *gorm.DB
	ai        *ai.Client
	extractor *extract.Extractor
	objects   ObjectReader
	maxBytes  int64
	logger    *slog.Logger
}

// NewService 构造 Service。objects 为 nil 时不会尝试补抽取文本。
func NewService(db *gorm.DB, aiClient *ai.Client, extractor *extract.Extractor, objects ObjectReader, maxBytes int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = extract.DefaultMaxBytes
	}
	return &Service{db: db, ai: aiClient, extractor: extractor, objects: objects, maxBytes: maxBytes, logger: logger}
}

// Analyze 对上传简历执行一次分析，并创建或覆盖该简历唯一的分析记录。
// 文本尚未抽取时会先从对象存储读取原件并抽取。
func (s *Service) Analyze(ctx context.Context, uploaded *database.UploadedCV, jobDescription string) (*database.CVAnalysis, error) {
	if err := s.ensureText(ctx, uploaded); err != nil {
		return nil, err
	}

	var cvText string
	if uploaded.Processed {
		cvText = textproc.CleanText(uploaded.ExtractedText)
	}
	result := s.ai.AnalyzeCV(ctx, cvText, jobDescription)

	source := SourceHeuristic
	if result.Source == ai.SourceAI {
		source = SourceAI
	}

	var row database.CVAnalysis
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("uploaded_cv_id = ?", uploaded.ID).First(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("query analysis: %w", err)
		}
		id, createdAt := row.ID, row.CreatedAt
		row = toRecord(result.Value)
		row.ID, row.CreatedAt = id, createdAt
		row.UploadedCVID = uploaded.ID
		row.JobDescription = strings.TrimSpace(jobDescription)
		row.Source = source
		row.FallbackReason = textproc.Truncate(result.Reason, 255)

		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveAIResult("analyze_cv", string(result.Source))
	metrics.ObserveAnalysisScore(row.OverallScore)
	s.logger.Info("cv analyzed",
		slog.Uint64("uploaded_cv_id", uint64(uploaded.ID)),
		slog.Uint64("analysis_id", uint64(row.ID)),
		slog.String("source", source),
		slog.Int("overall_score", row.OverallScore),
	)
	return &row, nil
}

func (s *Service) ensureText(ctx context.Context, uploaded *database.UploadedCV) error {
	if uploaded.Processed || s.objects == nil || s.extractor == nil {
		return nil
	}

	data, err := s.objects.ReadObject(ctx, uploaded.ObjectKey, s.maxBytes)
	if err != nil {
		// 原件不可读时仍然给出默认分析结果。
		s.logger.Warn("read uploaded cv failed", slog.Uint64("uploaded_cv_id", uint64(uploaded.ID)), slog.Any("error", err))
		if strings.TrimSpace(uploaded.ExtractedText) == "" {
			uploaded.ExtractedText = extract.PlaceholderEmpty
		}
		return nil
	}

	uploaded.ExtractedText, uploaded.Processed = s.extractor.Text(uploaded.ContentType, data)
	if err := s.db.WithContext(ctx).Model(uploaded).Updates(map[string]any{
		"extracted_text": uploaded.ExtractedText,
		"processed":      uploaded.Processed,
	}).Error; err != nil {
		return fmt.Errorf("update extracted text: %w", err)
	}
	return nil
}

// ListForUser 返回用户全部上传简历的分析记录，按更新时间倒序。
func (s *Service) ListForUser(ctx context.Context, userID uint) ([]database.CVAnalysis, error) {
	var rows []database.CVAnalysis
	if err := s.db.WithContext(ctx).
		Joins("JOIN uploaded_cvs ON uploaded_cvs.id = cv_analyses.uploaded_cv_id").
		Where("uploaded_cvs.user_id = ?", userID).
		Order("cv_analyses.updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return rows, nil
}

// GetForUser 返回属于该用户的分析记录。
func (s *Service) GetForUser(ctx context.Context, userID, id uint) (*database.CVAnalysis, error) {
	var row database.CVAnalysis
	err := s.db.WithContext(ctx).
		Joins("JOIN uploaded_cvs ON uploaded_cvs.id = cv_analyses.uploaded_cv_id").
		Where("cv_analyses.id = ? AND uploaded_cvs.user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	return &row, nil
}

// Breakdown 返回已保存分析的分数汇总与改进建议。
func Breakdown(row *database.CVAnalysis) scoring.Breakdown {
	return scoring.NewBreakdown(ToScoring(row))
}

// ToScoring 把数据库记录转换为评分结果。
func ToScoring(row *database.CVAnalysis) scoring.Analysis {
	kw := row.Keywords.Data()
	return scoring.Analysis{
		OverallScore:    row.OverallScore,
		ATSScore:        row.ATSScore,
		KeywordScore:    row.KeywordScore,
		Strengths:       []string(row.Strengths),
		Weaknesses:      []string(row.Weaknesses),
		Recommendations: []string(row.Recommendations),
		Skills:          []string(row.Skills),
		Keywords:        scoring.Keywords{Present: kw.Present, Missing: kw.Missing, Suggested: kw.Suggested},
		ExperienceLevel: row.ExperienceLevel,
		Industry:        row.Industry,
		EducationLevel:  row.EducationLevel,
	}
}

func toRecord(a scoring.Analysis) database.CVAnalysis {
	return database.CVAnalysis{
		OverallScore:    a.OverallScore,
		ATSScore:        a.ATSScore,
		KeywordScore:    a.KeywordScore,
		Strengths:       datatypes.NewJSONSlice(a.Strengths),
		Weaknesses:      datatypes.NewJSONSlice(a.Weaknesses),
		Recommendations: datatypes.NewJSONSlice(a.Recommendations),
		Skills:          datatypes.NewJSONSlice(a.Skills),
		Keywords: datatypes.NewJSONType(database.KeywordMap{
			Present:   a.Keywords.Present,
			Missing:   a.Keywords.Missing,
			Suggested: a.Keywords.Suggested,
		}),
		ExperienceLevel: a.ExperienceLevel,
		Industry:        a.Industry,
		EducationLevel:  a.EducationLevel,
	}
}
