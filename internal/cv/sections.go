package cv

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cvbuilder/internal/database"
)

// ErrSectionNotFound 表示子表条目不存在或不属于该 CV。
var ErrSectionNotFound = errors.New("section item not found")

// Section 约束七类 CV 子表模型的指针类型。
type Section[T any] interface {
	*T
	Section() *database.SectionBase
}

// Sections 是某一类子表的增删改查，调用方需先确认 CV 归属。
// 每次写入后都会重新保存父 CV，以刷新完成度与更新时间。
type Sections[T any, PT Section[T]] struct {
	db *gorm.DB
}

// NewSections 构造 Sections。
func NewSections[T any, PT Section[T]](db *gorm.DB) *Sections[T, PT] {
	return &Sections[T, PT]{db: db}
}

// List 返回 CV 下的全部条目，按 sort_order 排序。
func (s *Sections[T, PT]) List(ctx context.Context, cvID uint) ([]T, error) {
	var rows []T
	if err := s.db.WithContext(ctx).Where("cv_id = ?", cvID).Order(sectionOrderExpr).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return rows, nil
}

// Get 返回 CV 下的单个条目。
func (s *Sections[T, PT]) Get(ctx context.Context, cvID, id uint) (PT, error) {
	row := PT(new(T))
	if err := s.db.WithContext(ctx).Where("id = ? AND cv_id = ?", id, cvID).First(row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, fmt.Errorf("query section: %w", err)
	}
	return row, nil
}

// Create 把条目挂到 cvID 下并保存。
func (s *Sections[T, PT]) Create(ctx context.Context, cvID uint, row PT) error {
	base := row.Section()
	*base = database.SectionBase{CVID: cvID, Order: base.Order}
	return s.write(ctx, cvID, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
}

// Update 覆盖已存在条目的业务字段，ID、归属与创建时间保持不变。
func (s *Sections[T, PT]) Update(ctx context.Context, cvID uint, existing, row PT) error {
	prev := *existing.Section()
	base := row.Section()
	*base = database.SectionBase{ID: prev.ID, CVID: cvID, Order: base.Order, CreatedAt: prev.CreatedAt}
	return s.write(ctx, cvID, func(tx *gorm.DB) error {
		return tx.Save(row).Error
	})
}

// Delete 删除条目。
func (s *Sections[T, PT]) Delete(ctx context.Context, cvID, id uint) error {
	return s.write(ctx, cvID, func(tx *gorm.DB) error {
		row := PT(new(T))
		if err := tx.Where("id = ? AND cv_id = ?", id, cvID).First(row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSectionNotFound
			}
			return err
		}
		return tx.Delete(row).Error
	})
}

func (s *Sections[T, PT]) write(ctx context.Context, cvID uint, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			if errors.Is(err, ErrSectionNotFound) || database.IsValidationError(err) {
				return err
			}
			return fmt.Errorf("write section: %w", err)
		}
		return database.RefreshCVCompletion(tx, cvID)
	})
}
