package api

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/database"
	"cvbuilder/internal/render"
	"cvbuilder/internal/tasks"
)

const previewURLTTL = 15 * time.Minute

// TemplateHandler 负责模板相关的 API。
// 系统模板（CreatedByID 为空）对所有人可见但只读，用户模板仅创建者可见。
type TemplateHandler struct {
	db      *gorm.DB
	storage ObjectStorage
	queue   TaskEnqueuer
	logger  *slog.Logger
}

func NewTemplateHandler(db *gorm.DB, storageClient ObjectStorage, queue TaskEnqueuer, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{db: db, storage: storageClient, queue: queue, logger: logger}
}

type templateRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
	Style       *string `json:"style"`
	Type        *string `json:"type"`
}

type templateResponse struct {
	database.Template
	PreviewImageURL string `json:"preview_image_url,omitempty"`
	IsSystem        bool   `json:"is_system"`
}

// GET /v1/templates
// 列表：系统模板 ∪ 当前用户模板，可用 ?type= 过滤。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	q := h.visible(c, userID)
	if t := c.Query("type"); t != "" {
		q = q.Where("type = ?", t)
	}
	var templates []database.Template
	if err := q.Order("is_default DESC, name ASC").Find(&templates).Error; err != nil {
		loggerFrom(c, h.logger).Error("list templates failed", slog.Any("error", err))
		Internal(c, "failed to list templates")
		return
	}

	items := make([]templateResponse, 0, len(templates))
	for i := range templates {
		items = append(items, h.response(c, &templates[i]))
	}
	c.JSON(http.StatusOK, items)
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tpl, ok := h.loadVisible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.response(c, tpl))
}

// POST /v1/templates
// 创建模板：Owner 为当前用户，内容必须能用示例数据渲染。
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" || req.Content == nil {
		BadRequest(c, "name and content are required")
		return
	}

	model := database.Template{
		Style:       "modern",
		Type:        database.TemplateTypeCV,
		CreatedByID: &userID,
	}
	if msg := applyTemplateRequest(&model, req); msg != "" {
		BadRequest(c, msg)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&model).Error; err != nil {
		loggerFrom(c, h.logger).Error("create template failed", slog.Any("error", err))
		Internal(c, "failed to create template")
		return
	}
	c.JSON(http.StatusCreated, h.response(c, &model))
}

// PUT/PATCH /v1/templates/:id
// 只有创建者可以修改；内容变化后旧的预览图失效。
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	tpl, ok := h.loadOwned(c)
	if !ok {
		return
	}

	contentChanged := req.Content != nil && *req.Content != tpl.Content
	if msg := applyTemplateRequest(tpl, req); msg != "" {
		BadRequest(c, msg)
		return
	}
	staleKey := ""
	if contentChanged && tpl.PreviewImageKey != "" {
		staleKey = tpl.PreviewImageKey
		tpl.PreviewImageKey = ""
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Save(tpl).Error; err != nil {
		loggerFrom(c, h.logger).Error("update template failed", slog.Any("error", err))
		Internal(c, "failed to update template")
		return
	}
	if staleKey != "" {
		if err := h.storage.DeleteObject(ctx, staleKey); err != nil {
			loggerFrom(c, h.logger).Warn("delete stale preview failed", slog.String("object_key", staleKey), slog.Any("error", err))
		}
	}
	c.JSON(http.StatusOK, h.response(c, tpl))
}

// DELETE /v1/templates/:id
// 引用该模板的 CV 会回到内置版式。
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	tpl, ok := h.loadOwned(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.CV{}).Where("template_id = ?", tpl.ID).Update("template_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(tpl).Error
	})
	if err != nil {
		loggerFrom(c, h.logger).Error("delete template failed", slog.Any("error", err))
		Internal(c, "failed to delete template")
		return
	}

	if tpl.PreviewImageKey != "" {
		if err := h.storage.DeleteObject(ctx, tpl.PreviewImageKey); err != nil {
			loggerFrom(c, h.logger).Warn("delete template preview failed", slog.Any("error", err))
		}
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/templates/:id/preview
// 用示例数据渲染模板，返回 HTML。
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	tpl, ok := h.loadVisible(c)
	if !ok {
		return
	}
	html, err := render.Preview(tpl)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// POST /v1/templates/:id/preview-image
// 异步生成缩略图，完成后通过 WebSocket 通知。
func (h *TemplateHandler) GeneratePreviewImage(c *gin.Context) {
	tpl, ok := h.loadOwned(c)
	if !ok {
		return
	}

	task, err := tasks.NewTemplatePreviewTask(tpl.ID, middleware.GetCorrelationID(c))
	if err != nil {
		Internal(c, "failed to create task")
		return
	}
	info, err := h.queue.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		loggerFrom(c, h.logger).Error("enqueue template preview failed", slog.Any("error", err))
		Internal(c, "failed to enqueue preview generation")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": "preview generation accepted",
		"task_id": info.ID,
	})
}

// applyTemplateRequest 合并请求字段并校验，返回非空字符串表示校验失败。
func applyTemplateRequest(tpl *database.Template, req templateRequest) string {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return "name cannot be blank"
		}
		tpl.Name = name
	}
	if req.Description != nil {
		tpl.Description = strings.TrimSpace(*req.Description)
	}
	if req.Style != nil {
		if !slices.Contains(database.TemplateStyles, *req.Style) {
			return "invalid template style"
		}
		tpl.Style = *req.Style
	}
	if req.Type != nil {
		if *req.Type != database.TemplateTypeCV && *req.Type != database.TemplateTypeCoverLetter {
			return "invalid template type"
		}
		tpl.Type = *req.Type
	}
	if req.Content != nil {
		tpl.Content = *req.Content
	}
	if strings.TrimSpace(tpl.Content) == "" {
		return "content cannot be blank"
	}
	if err := render.Validate(tpl.Content, tpl.Type); err != nil {
		return err.Error()
	}
	return ""
}

func (h *TemplateHandler) visible(c *gin.Context, userID uint) *gorm.DB {
	return h.db.WithContext(c.Request.Context()).
		Where("created_by_id IS NULL OR created_by_id = ?", userID)
}

// loadVisible 加载系统模板或当前用户的模板，他人的模板视为不存在。
func (h *TemplateHandler) loadVisible(c *gin.Context) (*database.Template, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	id, ok := idParam(c, "id", "template")
	if !ok {
		return nil, false
	}

	var model database.Template
	if err := h.visible(c, userID).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "template not found")
			return nil, false
		}
		loggerFrom(c, h.logger).Error("query template failed", slog.Any("error", err))
		Internal(c, "failed to query template")
		return nil, false
	}
	return &model, true
}

// loadOwned 在 loadVisible 基础上要求当前用户是创建者，系统模板返回 403。
func (h *TemplateHandler) loadOwned(c *gin.Context) (*database.Template, bool) {
	tpl, ok := h.loadVisible(c)
	if !ok {
		return nil, false
	}
	if tpl.CreatedByID == nil {
		Forbidden(c, "system templates are read-only")
		return nil, false
	}
	return tpl, true
}

func (h *TemplateHandler) response(c *gin.Context, tpl *database.Template) templateResponse {
	resp := templateResponse{Template: *tpl, IsSystem: tpl.CreatedByID == nil}
	if tpl.PreviewImageKey != "" && h.storage != nil {
		url, err := h.storage.GeneratePresignedURL(c.Request.Context(), tpl.PreviewImageKey, previewURLTTL)
		if err != nil {
			loggerFrom(c, h.logger).Warn("presign template preview failed", slog.Uint64("template_id", uint64(tpl.ID)), slog.Any("error", err))
		} else {
			resp.PreviewImageURL = url
		}
	}
	return resp
}
