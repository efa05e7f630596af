package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/coverletter"
	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/render"
	"cvbuilder/internal/storage"
	"cvbuilder/internal/tasks"
	"cvbuilder/internal/textproc"
)

const downloadLinkTTL = 5 * time.Minute

// CVHandler 负责在线简历的 API。
type CVHandler struct {
	db      *gorm.DB
	cvs     *cv.Service
	letters *coverletter.Service
	storage ObjectStorage
	queue   TaskEnqueuer
	logger  *slog.Logger
}

// NewCVHandler 构造 CVHandler。
func NewCVHandler(db *gorm.DB, cvs *cv.Service, letters *coverletter.Service, storageClient ObjectStorage, queue TaskEnqueuer, logger *slog.Logger) *CVHandler {
	return &CVHandler{db: db, cvs: cvs, letters: letters, storage: storageClient, queue: queue, logger: logger}
}

// cvRequest 中的指针字段为 nil 表示不修改；template_id 传 0 表示解除模板。
type cvRequest struct {
	Title      *string `json:"title" binding:"omitempty,max=200"`
	FullName   *string `json:"full_name" binding:"omitempty,max=100"`
	Email      *string `json:"email" binding:"omitempty,max=254"`
	Phone      *string `json:"phone" binding:"omitempty,max=20"`
	Location   *string `json:"location" binding:"omitempty,max=100"`
	Website    *string `json:"website" binding:"omitempty,max=200"`
	LinkedIn   *string `json:"linkedin" binding:"omitempty,max=200"`
	GitHub     *string `json:"github" binding:"omitempty,max=200"`
	Summary    *string `json:"summary"`
	TemplateID *uint   `json:"template_id"`
	IsDraft    *bool   `json:"is_draft"`
}

func (r cvRequest) apply(doc *database.CV) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&doc.Title, r.Title)
	set(&doc.FullName, r.FullName)
	set(&doc.Email, r.Email)
	set(&doc.Phone, r.Phone)
	set(&doc.Location, r.Location)
	set(&doc.Website, r.Website)
	set(&doc.LinkedIn, r.LinkedIn)
	set(&doc.GitHub, r.GitHub)
	set(&doc.Summary, r.Summary)
	if r.TemplateID != nil {
		if *r.TemplateID == 0 {
			doc.TemplateID = nil
		} else {
			id := *r.TemplateID
			doc.TemplateID = &id
		}
	}
	if r.IsDraft != nil {
		doc.IsDraft = *r.IsDraft
	}
}

// ListCVs 返回当前用户的全部 CV。
func (h *CVHandler) ListCVs(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	cvs, err := h.cvs.List(c.Request.Context(), userID)
	if err != nil {
		loggerFrom(c, h.logger).Error("list cvs failed", slog.Any("error", err))
		Internal(c, "failed to list cvs")
		return
	}
	c.JSON(http.StatusOK, cvs)
}

// CreateCV 新建 CV，超过数量上限返回 403。
func (h *CVHandler) CreateCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req cvRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		BadRequest(c, "title is required")
		return
	}

	doc := database.CV{IsDraft: true}
	req.apply(&doc)
	if !h.checkTemplate(c, userID, doc.TemplateID) {
		return
	}

	if err := h.cvs.Create(c.Request.Context(), userID, &doc); err != nil {
		if errors.Is(err, cv.ErrLimitReached) {
			Forbidden(c, "cv limit reached")
			return
		}
		loggerFrom(c, h.logger).Error("create cv failed", slog.Any("error", err))
		Internal(c, "failed to create cv")
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// GetCV 返回 CV 及全部子表。
func (h *CVHandler) GetCV(c *gin.Context) {
	doc, ok := h.loadFull(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// UpdateCV 处理 PUT：标题不能为空。
func (h *CVHandler) UpdateCV(c *gin.Context) {
	h.update(c, true)
}

// PatchCV 处理 PATCH：只修改请求中出现的字段。
func (h *CVHandler) PatchCV(c *gin.Context) {
	h.update(c, false)
}

func (h *CVHandler) update(c *gin.Context, full bool) {
	var req cvRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if full && (req.Title == nil || strings.TrimSpace(*req.Title) == "") {
		BadRequest(c, "title is required")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		BadRequest(c, "title cannot be blank")
		return
	}

	doc, ok := h.load(c)
	if !ok {
		return
	}
	req.apply(doc)
	if !h.checkTemplate(c, doc.UserID, doc.TemplateID) {
		return
	}

	ctx := c.Request.Context()
	if err := h.cvs.Save(ctx, doc); err != nil {
		loggerFrom(c, h.logger).Error("save cv failed", slog.Any("error", err))
		Internal(c, "failed to save cv")
		return
	}
	full2, err := h.cvs.GetFull(ctx, doc.UserID, doc.ID)
	if err != nil {
		Internal(c, "failed to reload cv")
		return
	}
	c.JSON(http.StatusOK, full2)
}

// DeleteCV 删除 CV、子表与已导出的 PDF。
func (h *CVHandler) DeleteCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id", "cv")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.cvs.Delete(ctx, userID, id); err != nil {
		h.cvError(c, err, "failed to delete cv")
		return
	}
	if err := h.storage.DeletePrefix(ctx, storage.ExportedCVPrefix(userID, id)); err != nil {
		loggerFrom(c, h.logger).Warn("delete exported pdfs failed", slog.Uint64("cv_id", uint64(id)), slog.Any("error", err))
	}
	c.Status(http.StatusNoContent)
}

// DuplicateCV 复制 CV 及全部子表。
func (h *CVHandler) DuplicateCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id", "cv")
	if !ok {
		return
	}
	dup, err := h.cvs.Duplicate(c.Request.Context(), userID, id)
	if err != nil {
		h.cvError(c, err, "failed to duplicate cv")
		return
	}
	c.JSON(http.StatusCreated, dup)
}

// PreviewCV 返回预览数据；format=html 时返回渲染后的页面。
func (h *CVHandler) PreviewCV(c *gin.Context) {
	doc, ok := h.loadFull(c)
	if !ok {
		return
	}

	if c.Query("format") == "html" {
		html, err := render.CV(doc.Template, doc)
		if err != nil {
			loggerFrom(c, h.logger).Warn("render cv template failed, using default layout", slog.Any("error", err))
			html, err = render.CV(nil, doc)
		}
		if err != nil {
			Internal(c, "failed to render cv")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cv":         doc,
		"completion": cv.CompletionStatus(doc),
		"plain_text": cv.PlainText(doc),
	})
}

// CompletionStatus 返回完成度与缺失项。
func (h *CVHandler) CompletionStatus(c *gin.Context) {
	doc, ok := h.loadFull(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cv.CompletionStatus(doc))
}

// ValidateCV 返回校验错误列表，列表为空即校验通过。
func (h *CVHandler) ValidateCV(c *gin.Context) {
	doc, ok := h.loadFull(c)
	if !ok {
		return
	}
	errs := cv.Validate(doc)
	if errs == nil {
		errs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"is_valid": len(errs) == 0, "errors": errs})
}

type cvCoverLetterRequest struct {
	JobTitle       string `json:"job_title" binding:"required,max=200"`
	CompanyName    string `json:"company_name" binding:"max=200"`
	JobDescription string `json:"job_description" binding:"required"`
	Tone           string `json:"tone"`
	TemplateType   string `json:"template_type"`
}

// GenerateCoverLetter 以该 CV 为素材生成求职信。
func (h *CVHandler) GenerateCoverLetter(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id", "cv")
	if !ok {
		return
	}
	var req cvCoverLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	letter, err := h.letters.Generate(c.Request.Context(), userID, coverletter.GenerateInput{
		CVID:           &id,
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		JobDescription: req.JobDescription,
		Tone:           req.Tone,
		TemplateType:   req.TemplateType,
	})
	if err != nil {
		coverLetterError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusCreated, letter)
}

// ExportCV 将 PDF 导出任务入队并立即返回 202，结果通过 WebSocket 通知。
func (h *CVHandler) ExportCV(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger).With(slog.Uint64("cv_id", uint64(doc.ID)))

	// 先标记 pending 再入队，避免 worker 先完成后被覆盖。
	previous := doc.PdfStatus
	if err := h.setPdfStatus(ctx, doc.ID, database.PdfStatusPending); err != nil {
		logger.Error("mark pdf pending failed", slog.Any("error", err))
		Internal(c, "failed to export cv")
		return
	}

	task, err := tasks.NewCVExportTask(doc.ID, middleware.GetCorrelationID(c))
	if err != nil {
		Internal(c, "failed to create task")
		return
	}
	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		logger.Error("enqueue cv export failed", slog.Any("error", err))
		_ = h.setPdfStatus(ctx, doc.ID, previous)
		Internal(c, "failed to enqueue pdf export")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "PDF export request accepted",
		"task_id": info.ID,
	})
}

// DownloadLink 返回已导出 PDF 的预签名下载链接。
func (h *CVHandler) DownloadLink(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}
	if doc.PdfKey == "" {
		Conflict(c, "pdf not ready")
		return
	}

	filename := textproc.SanitizeFilename(doc.Title)
	if filename == "" {
		filename = "cv"
	}
	url, err := h.storage.GeneratePresignedURLWithParams(c.Request.Context(), doc.PdfKey, downloadLinkTTL, attachmentParams(filename+".pdf"))
	if err != nil {
		loggerFrom(c, h.logger).Error("generate cv download link failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "pdf_status": doc.PdfStatus})
}

func (h *CVHandler) setPdfStatus(ctx context.Context, cvID uint, status string) error {
	return h.db.WithContext(ctx).Model(&database.CV{}).Where("id = ?", cvID).Update("pdf_status", status).Error
}

// checkTemplate 确认模板存在、对用户可见且是 CV 模板。
func (h *CVHandler) checkTemplate(c *gin.Context, userID uint, templateID *uint) bool {
	if templateID == nil {
		return true
	}
	var tpl database.Template
	err := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND (created_by_id IS NULL OR created_by_id = ?)", *templateID, userID).
		First(&tpl).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		BadRequest(c, "template not found")
		return false
	case err != nil:
		Internal(c, "failed to query template")
		return false
	case tpl.Type != database.TemplateTypeCV:
		BadRequest(c, "template is not a cv template")
		return false
	}
	return true
}

func (h *CVHandler) load(c *gin.Context) (*database.CV, bool) {
	return h.fetch(c, h.cvs.Get)
}

func (h *CVHandler) loadFull(c *gin.Context) (*database.CV, bool) {
	return h.fetch(c, h.cvs.GetFull)
}

func (h *CVHandler) fetch(c *gin.Context, get func(ctx context.Context, userID, cvID uint) (*database.CV, error)) (*database.CV, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	id, ok := idParam(c, "id", "cv")
	if !ok {
		return nil, false
	}
	doc, err := get(c.Request.Context(), userID, id)
	if err != nil {
		h.cvError(c, err, "failed to query cv")
		return nil, false
	}
	return doc, true
}

func (h *CVHandler) cvError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, cv.ErrNotFound):
		NotFound(c, "cv not found")
	case errors.Is(err, cv.ErrInvalidCVID):
		BadRequest(c, "invalid cv id")
	case errors.Is(err, cv.ErrLimitReached):
		Forbidden(c, "cv limit reached")
	default:
		loggerFrom(c, h.logger).Error(msg, slog.Any("error", err))
		Internal(c, msg)
	}
}
