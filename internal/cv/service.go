// Package cv 负责在线简历的持久化操作：按用户隔离的查询、复制与级联删除。
package cv

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cvbuilder/internal/database"
)

var (
	ErrNotFound     = errors.New("cv not found")
	ErrLimitReached = errors.New("cv limit reached")
	ErrInvalidCVID  = errors.New("invalid cv id")
)

const (
	copyTitleSuffix  = " (Copy)"
	sectionOrderExpr = "sort_order ASC, id ASC"
)

// Service 封装 CV 相关的数据库操作。
type Service struct {
	db         *gorm.DB
	maxPerUser int
}

// NewService 构造 Service，maxPerUser <= 0 表示不限制数量。
func NewService(db *gorm.DB, maxPerUser int) *Service {
	return &Service{db: db, maxPerUser: maxPerUser}
}

// List 返回用户的全部 CV，按更新时间倒序。
func (s *Service) List(ctx context.Context, userID uint) ([]database.CV, error) {
	var cvs []database.CV
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&cvs).Error; err != nil {
		return nil, fmt.Errorf("list cvs: %w", err)
	}
	return cvs, nil
}

// Get 返回属于该用户的 CV（不含子表）。
func (s *Service) Get(ctx context.Context, userID, cvID uint) (*database.CV, error) {
	return s.get(s.db.WithContext(ctx), userID, cvID)
}

// GetFull 返回属于该用户的 CV 及全部子表，子表按 sort_order 排序。
func (s *Service) GetFull(ctx context.Context, userID, cvID uint) (*database.CV, error) {
	return s.get(preloadSections(s.db.WithContext(ctx)).Preload("Template"), userID, cvID)
}

func (s *Service) get(db *gorm.DB, userID, cvID uint) (*database.CV, error) {
	if cvID == 0 {
		return nil, ErrInvalidCVID
	}
	var cv database.CV
	if err := db.Where("id = ? AND user_id = ?", cvID, userID).First(&cv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query cv: %w", err)
	}
	return &cv, nil
}

// Load 按 ID 读取 CV 及全部子表与模板，不校验归属，供 worker 使用。
func Load(ctx context.Context, db *gorm.DB, cvID uint) (*database.CV, error) {
	var cv database.CV
	if err := preloadSections(db.WithContext(ctx)).Preload("Template").First(&cv, cvID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query cv: %w", err)
	}
	return &cv, nil
}

func preloadSections(db *gorm.DB) *gorm.DB {
	ordered := func(tx *gorm.DB) *gorm.DB { return tx.Order(sectionOrderExpr) }
	return db.
		Preload("Experiences", ordered).
		Preload("Educations", ordered).
		Preload("Skills", ordered).
		Preload("Projects", ordered).
		Preload("Certifications", ordered).
		Preload("Languages", ordered).
		Preload("Awards", ordered)
}

// Create 为用户新建 CV，超过数量上限时返回 ErrLimitReached。
func (s *Service) Create(ctx context.Context, userID uint, cv *database.CV) error {
	db := s.db.WithContext(ctx)
	if s.maxPerUser > 0 {
		var count int64
		if err := db.Model(&database.CV{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("count cvs: %w", err)
		}
		if count >= int64(s.maxPerUser) {
			return ErrLimitReached
		}
	}

	cv.ID = 0
	cv.UserID = userID
	if err := db.Omit(clause.Associations).Create(cv).Error; err != nil {
		return fmt.Errorf("create cv: %w", err)
	}
	return nil
}

// Save 保存 CV 主表字段，完成度由钩子重新计算。
func (s *Service) Save(ctx context.Context, cv *database.CV) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(cv).Error; err != nil {
		return fmt.Errorf("save cv: %w", err)
	}
	return nil
}

// Duplicate 在同一事务中复制 CV 及其七类子表，新标题追加 " (Copy)"。
func (s *Service) Duplicate(ctx context.Context, userID, cvID uint) (*database.CV, error) {
	var copied database.CV
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := s.get(preloadSections(tx), userID, cvID)
		if err != nil {
			return err
		}
		if s.maxPerUser > 0 {
			var count int64
			if err := tx.Model(&database.CV{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
				return fmt.Errorf("count cvs: %w", err)
			}
			if count >= int64(s.maxPerUser) {
				return ErrLimitReached
			}
		}

		copied = *src
		copied.Model = database.Model{}
		copied.Title = src.Title + copyTitleSuffix
		copied.PdfKey = ""
		copied.PdfStatus = ""
		copied.Template = nil
		copied.Experiences, copied.Educations, copied.Skills = nil, nil, nil
		copied.Projects, copied.Certifications, copied.Languages, copied.Awards = nil, nil, nil, nil

		if err := tx.Omit(clause.Associations).Create(&copied).Error; err != nil {
			return fmt.Errorf("create cv copy: %w", err)
		}

		steps := []func() error{
			func() error { return copySection(tx, src.Experiences, copied.ID) },
			func() error { return copySection(tx, src.Educations, copied.ID) },
			func() error { return copySection(tx, src.Skills, copied.ID) },
			func() error { return copySection(tx, src.Projects, copied.ID) },
			func() error { return copySection(tx, src.Certifications, copied.ID) },
			func() error { return copySection(tx, src.Languages, copied.ID) },
			func() error { return copySection(tx, src.Awards, copied.ID) },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetFull(ctx, userID, copied.ID)
}

// copySection 把子表行重新挂到 cvID 下，保留排序与业务字段。
func copySection[T any, PT Section[T]](tx *gorm.DB, rows []T, cvID uint) error {
	if len(rows) == 0 {
		return nil
	}
	clones := make([]T, len(rows))
	copy(clones, rows)
	for i := range clones {
		base := PT(&clones[i]).Section()
		*base = database.SectionBase{CVID: cvID, Order: base.Order}
	}
	if err := tx.Create(&clones).Error; err != nil {
		return fmt.Errorf("copy %T rows: %w", clones[0], err)
	}
	return nil
}

// Delete 在事务中删除 CV 及其子表；引用该 CV 的求职信保留但解除关联。
func (s *Service) Delete(ctx context.Context, userID, cvID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cv, err := s.get(tx, userID, cvID)
		if err != nil {
			return err
		}

		// 子表直接按 cv_id 删除，不触发逐行钩子。
		for _, model := range []any{
			&database.Experience{}, &database.Education{}, &database.Skill{}, &database.Project{},
			&database.Certification{}, &database.Language{}, &database.Award{},
		} {
			if err := tx.Where("cv_id = ?", cv.ID).Delete(model).Error; err != nil {
				return fmt.Errorf("delete %T rows: %w", model, err)
			}
		}
		if err := tx.Model(&database.AICoverLetter{}).
			Where("cv_id = ?", cv.ID).
			Update("cv_id", nil).Error; err != nil {
			return fmt.Errorf("detach cover letters: %w", err)
		}
		if err := tx.Delete(&database.CV{}, cv.ID).Error; err != nil {
			return fmt.Errorf("delete cv: %w", err)
		}
		return nil
	})
}
