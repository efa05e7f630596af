package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username           string `gorm:"uniqueIndex;size:64"`
	PasswordHash       string `gorm:"size:255"`
	MustChangePassword bool   `gorm:"not null;default:false"`
	CVs                []CV   `gorm:"constraint:OnDelete:CASCADE"`
}

// Model 是业务表共用的主键与时间戳，不启用软删除，删除即物理删除。
type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PDF 导出状态。
const (
	PdfStatusPending   = "pending"
	PdfStatusCompleted = "completed"
	PdfStatusFailed    = "failed"
)

// CV 表示用户在线编辑的一份简历。
// CompletionPercentage 与 IsComplete 由 BeforeSave 钩子派生，外部写入会被覆盖。
type CV struct {
	Model
	UserID               uint      `gorm:"index;not null" json:"user_id"`
	Title                string    `gorm:"size:200;not null" json:"title"`
	FullName             string    `gorm:"size:100" json:"full_name"`
	Email                string    `gorm:"size:254" json:"email"`
	Phone                string    `gorm:"size:20" json:"phone"`
	Location             string    `gorm:"size:100" json:"location"`
	Website              string    `gorm:"size:200" json:"website"`
	LinkedIn             string    `gorm:"column:linkedin;size:200" json:"linkedin"`
	GitHub               string    `gorm:"column:github;size:200" json:"github"`
	Summary              string    `gorm:"type:text" json:"summary"`
	TemplateID           *uint     `gorm:"index" json:"template_id"`
	Template             *Template `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	CompletionPercentage int       `gorm:"not null;default:0" json:"completion_percentage"`
	IsComplete           bool      `gorm:"not null;default:false" json:"is_complete"`
	IsDraft              bool      `gorm:"not null" json:"is_draft"`
	PdfKey               string    `gorm:"size:512" json:"-"`
	PdfStatus            string    `gorm:"size:32" json:"pdf_status"`

	Experiences    []Experience    `gorm:"constraint:OnDelete:CASCADE" json:"experiences,omitempty"`
	Educations     []Education     `gorm:"constraint:OnDelete:CASCADE" json:"educations,omitempty"`
	Skills         []Skill         `gorm:"constraint:OnDelete:CASCADE" json:"skills,omitempty"`
	Projects       []Project       `gorm:"constraint:OnDelete:CASCADE" json:"projects,omitempty"`
	Certifications []Certification `gorm:"constraint:OnDelete:CASCADE" json:"certifications,omitempty"`
	Languages      []Language      `gorm:"constraint:OnDelete:CASCADE" json:"languages,omitempty"`
	Awards         []Award         `gorm:"constraint:OnDelete:CASCADE" json:"awards,omitempty"`
}

// SectionBase 是 CV 子表共用字段。
type SectionBase struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CVID      uint      `gorm:"column:cv_id;index;not null" json:"cv_id"`
	Order     int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Section 返回公共字段的指针，便于泛型代码统一处理子表。
func (b *SectionBase) Section() *SectionBase { return b }

// Period 描述带起止日期的条目。IsCurrent 为真时 EndDate 总是被清空。
type Period struct {
	StartDate *Date `json:"start_date"`
	EndDate   *Date `json:"end_date"`
	IsCurrent bool  `gorm:"not null;default:false" json:"is_current"`
}

// Experience 工作经历。
type Experience struct {
	SectionBase
	Period
	JobTitle     string         `gorm:"size:200;not null" json:"job_title" binding:"required"`
	Company      string         `gorm:"size:200;not null" json:"company" binding:"required"`
	Location     string         `gorm:"size:100" json:"location"`
	Description  string         `gorm:"type:text" json:"description"`
	Achievements datatypes.JSON `json:"achievements"`
}

// Education 教育经历。
type Education struct {
	SectionBase
	Period
	Degree       string `gorm:"size:200;not null" json:"degree" binding:"required"`
	Institution  string `gorm:"size:200;not null" json:"institution" binding:"required"`
	FieldOfStudy string `gorm:"size:200" json:"field_of_study"`
	Location     string `gorm:"size:100" json:"location"`
	Grade        string `gorm:"size:50" json:"grade"`
	Description  string `gorm:"type:text" json:"description"`
}

// 技能等级。
const (
	SkillBeginner     = "beginner"
	SkillIntermediate = "intermediate"
	SkillAdvanced     = "advanced"
	SkillExpert       = "expert"
)

// SkillLevels 按从低到高排列。
var SkillLevels = []string{SkillBeginner, SkillIntermediate, SkillAdvanced, SkillExpert}

// Skill 技能条目。
type Skill struct {
	SectionBase
	Name     string `gorm:"size:100;not null" json:"name" binding:"required"`
	Level    string `gorm:"size:20;not null;default:intermediate" json:"level"`
	Category string `gorm:"size:100" json:"category"`
}

// Project 项目经历。
type Project struct {
	SectionBase
	Period
	Name         string         `gorm:"size:200;not null" json:"name" binding:"required"`
	Description  string         `gorm:"type:text" json:"description"`
	URL          string         `gorm:"size:200" json:"url"`
	Technologies datatypes.JSON `json:"technologies"`
}

// Certification 证书。StartDate 为颁发日期，EndDate 为过期日期，IsCurrent 表示长期有效。
type Certification struct {
	SectionBase
	Period
	Name          string `gorm:"size:200;not null" json:"name" binding:"required"`
	Issuer        string `gorm:"size:200" json:"issuer"`
	CredentialID  string `gorm:"size:100" json:"credential_id"`
	CredentialURL string `gorm:"size:200" json:"credential_url"`
}

// 语言熟练度。
const (
	LanguageBasic          = "basic"
	LanguageConversational = "conversational"
	LanguageFluent         = "fluent"
	LanguageNative         = "native"
)

// LanguageLevels 按从低到高排列。
var LanguageLevels = []string{LanguageBasic, LanguageConversational, LanguageFluent, LanguageNative}

// Language 语言能力。
type Language struct {
	SectionBase
	Name        string `gorm:"size:100;not null" json:"name" binding:"required"`
	Proficiency string `gorm:"size:20;not null;default:conversational" json:"proficiency"`
}

// Award 奖项。
type Award struct {
	SectionBase
	Period
	Title       string `gorm:"size:200;not null" json:"title" binding:"required"`
	Issuer      string `gorm:"size:200" json:"issuer"`
	Description string `gorm:"type:text" json:"description"`
}

// UploadedCV 用户上传的简历文件，原文件保存在对象存储中。
type UploadedCV struct {
	Model
	UserID           uint   `gorm:"index;not null" json:"user_id"`
	ObjectKey        string `gorm:"size:512;not null" json:"-"`
	OriginalFilename string `gorm:"size:255" json:"original_filename"`
	Title            string `gorm:"size:200" json:"title"`
	Description      string `gorm:"type:text" json:"description"`
	ContentType      string `gorm:"size:128" json:"content_type"`
	Size             int64  `json:"size"`
	ExtractedText    string `gorm:"type:text" json:"extracted_text"`
	Processed        bool   `gorm:"not null;default:false" json:"processed"`

	Analysis *CVAnalysis `gorm:"constraint:OnDelete:CASCADE" json:"analysis,omitempty"`
}

// 求职信语气。
const (
	ToneProfessional = "professional"
	ToneFriendly     = "friendly"
	ToneFormal       = "formal"
	ToneCreative     = "creative"
	ToneConfident    = "confident"
)

// Tones 允许的语气列表。
var Tones = []string{ToneProfessional, ToneFriendly, ToneFormal, ToneCreative, ToneConfident}

// LetterTemplateTypes 允许的求职信版式。
var LetterTemplateTypes = []string{"standard", "modern", "executive", "creative"}

// AICoverLetter 生成的求职信。
type AICoverLetter struct {
	Model
	UserID          uint        `gorm:"index;not null" json:"user_id"`
	UploadedCVID    *uint       `gorm:"column:uploaded_cv_id;index" json:"uploaded_cv_id"`
	UploadedCV      *UploadedCV `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CVID            *uint       `gorm:"column:cv_id;index" json:"cv_id"`
	CV              *CV         `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	JobTitle        string      `gorm:"size:200;not null" json:"job_title"`
	CompanyName     string      `gorm:"size:200" json:"company_name"`
	JobDescription  string      `gorm:"type:text;not null" json:"job_description"`
	GeneratedLetter string      `gorm:"type:text" json:"generated_letter"`
	Tone            string      `gorm:"size:20;not null;default:professional" json:"tone"`
	TemplateType    string      `gorm:"size:20;not null;default:standard" json:"template_type"`
	CVSnapshot      string      `gorm:"type:text" json:"cv_snapshot"`
	Source          string      `gorm:"size:20" json:"source"`
}

// KeywordMap 保存关键词分析结果，以 JSON 形式入库。
type KeywordMap struct {
	Present   []string `json:"present"`
	Missing   []string `json:"missing"`
	Suggested []string `json:"suggested"`
}

// CVAnalysis 与 UploadedCV 一对一，每次分析覆盖同一行。
type CVAnalysis struct {
	Model
	UploadedCVID    uint                           `gorm:"column:uploaded_cv_id;uniqueIndex;not null" json:"uploaded_cv_id"`
	OverallScore    int                            `gorm:"not null;default:0" json:"overall_score"`
	ATSScore        int                            `gorm:"column:ats_score;not null;default:0" json:"ats_score"`
	KeywordScore    int                            `gorm:"not null;default:0" json:"keyword_score"`
	Strengths       datatypes.JSONSlice[string]    `json:"strengths"`
	Weaknesses      datatypes.JSONSlice[string]    `json:"weaknesses"`
	Recommendations datatypes.JSONSlice[string]    `json:"recommendations"`
	Skills          datatypes.JSONSlice[string]    `json:"skills"`
	Keywords        datatypes.JSONType[KeywordMap] `json:"keywords"`
	ExperienceLevel string                         `gorm:"size:100" json:"experience_level"`
	Industry        string                         `gorm:"size:100" json:"industry"`
	EducationLevel  string                         `gorm:"size:100" json:"education_level"`
	JobDescription  string                         `gorm:"type:text" json:"job_description,omitempty"`
	Source          string                         `gorm:"size:20" json:"source"`
	FallbackReason  string                         `gorm:"size:255" json:"fallback_reason,omitempty"`
}

// 模板类型。
const (
	TemplateTypeCV          = "cv"
	TemplateTypeCoverLetter = "cover_letter"
)

// TemplateStyles 允许的模板风格。
var TemplateStyles = []string{"modern", "creative", "minimalist", "professional", "executive", "academic", "technical"}

// Template 表示可复用的渲染模板，Content 为 html/template 文本。
// CreatedByID 为空表示系统内置模板。
type Template struct {
	Model
	Name            string `gorm:"size:100;not null" json:"name"`
	Description     string `gorm:"type:text" json:"description"`
	Content         string `gorm:"type:text;not null" json:"content"`
	Style           string `gorm:"size:20;not null;default:modern" json:"style"`
	Type            string `gorm:"size:20;not null;default:cv" json:"type"`
	IsDefault       bool   `gorm:"not null;default:false" json:"is_default"`
	PreviewImageKey string `gorm:"size:512" json:"-"`
	CreatedByID     *uint  `gorm:"index" json:"created_by_id"`
}

// AllModels 返回需要迁移的全部模型，API 与测试共用。
func AllModels() []any {
	return []any{
		&User{},
		&Template{},
		&CV{},
		&Experience{},
		&Education{},
		&Skill{},
		&Project{},
		&Certification{},
		&Language{},
		&Award{},
		&UploadedCV{},
		&CVAnalysis{},
		&AICoverLetter{},
	}
}
