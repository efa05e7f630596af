package database

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"
)

// completionChecks 是计算完成度的检查项数量：6 个必填字段 + 至少一段工作经历 + 至少一段教育经历。
const completionChecks = 8

// BeforeSave 在每次保存 CV 时重新计算完成度。
func (cv *CV) BeforeSave(tx *gorm.DB) error {
	done := 0
	for _, field := range []string{cv.Title, cv.FullName, cv.Email, cv.Phone, cv.Location, cv.Summary} {
		if strings.TrimSpace(field) != "" {
			done++
		}
	}

	if cv.ID != 0 {
		db := tx.Session(&gorm.Session{NewDB: true})
		var experiences, educations int64
		if err := db.Model(&Experience{}).Where("cv_id = ?", cv.ID).Count(&experiences).Error; err != nil {
			return err
		}
		if err := db.Model(&Education{}).Where("cv_id = ?", cv.ID).Count(&educations).Error; err != nil {
			return err
		}
		if experiences > 0 {
			done++
		}
		if educations > 0 {
			done++
		}
	}

	cv.CompletionPercentage = done * 100 / completionChecks
	cv.IsComplete = cv.CompletionPercentage == 100
	return nil
}

// RefreshCVCompletion 重新保存父 CV 以刷新完成度；CV 不存在时静默返回。
func RefreshCVCompletion(tx *gorm.DB, cvID uint) error {
	if cvID == 0 {
		return nil
	}
	db := tx.Session(&gorm.Session{NewDB: true})
	var cv CV
	if err := db.First(&cv, cvID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return db.Omit("Template").Save(&cv).Error
}

// 以下错误表示字段取值不合法，调用方应返回 400。
var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidChoice = errors.New("invalid choice")
)

// IsValidationError 判断保存钩子返回的错误是否属于输入校验失败。
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) || errors.Is(err, ErrInvalidChoice)
}

func (p *Period) normalize() {
	if p.IsCurrent {
		p.EndDate = nil
	}
}

// validate 校验结束日期：非在职且填写了开始日期时必须有结束日期，且不早于开始日期。
func (p *Period) validate() error {
	if p.StartDate != nil && !p.IsCurrent && p.EndDate == nil {
		return fmt.Errorf("%w: end date is required unless this is current", ErrInvalidPeriod)
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(p.StartDate.Time) {
		return fmt.Errorf("%w: end date cannot be before start date", ErrInvalidPeriod)
	}
	return nil
}

func (e *Experience) BeforeSave(*gorm.DB) error {
	e.normalize()
	return e.validate()
}

func (e *Education) BeforeSave(*gorm.DB) error {
	e.normalize()
	return e.validate()
}

func (p *Project) BeforeSave(*gorm.DB) error    { p.normalize(); return nil }
func (c *Certification) BeforeSave(*gorm.DB) error {
	c.normalize()
	return nil
}
func (a *Award) BeforeSave(*gorm.DB) error { a.normalize(); return nil }

func (s *Skill) BeforeSave(*gorm.DB) error {
	if s.Level == "" {
		s.Level = SkillIntermediate
	}
	if !slices.Contains(SkillLevels, s.Level) {
		return fmt.Errorf("%w: skill level %q", ErrInvalidChoice, s.Level)
	}
	return nil
}

func (l *Language) BeforeSave(*gorm.DB) error {
	if l.Proficiency == "" {
		l.Proficiency = LanguageConversational
	}
	if !slices.Contains(LanguageLevels, l.Proficiency) {
		return fmt.Errorf("%w: language proficiency %q", ErrInvalidChoice, l.Proficiency)
	}
	return nil
}

// 经历与教育的增删改会影响父 CV 的完成度。
func (e *Experience) AfterSave(tx *gorm.DB) error   { return RefreshCVCompletion(tx, e.CVID) }
func (e *Experience) AfterDelete(tx *gorm.DB) error { return RefreshCVCompletion(tx, e.CVID) }
func (e *Education) AfterSave(tx *gorm.DB) error    { return RefreshCVCompletion(tx, e.CVID) }
func (e *Education) AfterDelete(tx *gorm.DB) error  { return RefreshCVCompletion(tx, e.CVID) }
