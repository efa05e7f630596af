package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
)

// SectionHandler 为某一类 CV 子表提供 /cvs/:id/<section> 下的增删改查。
type SectionHandler[T any, PT cv.Section[T]] struct {
	name     string
	cvs      *cv.Service
	sections *cv.Sections[T, PT]
	logger   *slog.Logger
}

// NewSectionHandler 构造 SectionHandler，name 用于错误信息与日志。
func NewSectionHandler[T any, PT cv.Section[T]](name string, cvs *cv.Service, sections *cv.Sections[T, PT], logger *slog.Logger) *SectionHandler[T, PT] {
	return &SectionHandler[T, PT]{name: name, cvs: cvs, sections: sections, logger: logger}
}

// Register 把五个路由挂到 group 的 /:id/<path> 下。
func (h *SectionHandler[T, PT]) Register(group *gin.RouterGroup, path string) {
	group.GET("/:id/"+path, h.List)
	group.POST("/:id/"+path, h.Create)
	group.GET("/:id/"+path+"/:item_id", h.Get)
	group.PUT("/:id/"+path+"/:item_id", h.Update)
	group.PATCH("/:id/"+path+"/:item_id", h.Update)
	group.DELETE("/:id/"+path+"/:item_id", h.Delete)
}

func (h *SectionHandler[T, PT]) List(c *gin.Context) {
	cvID, ok := h.ownedCV(c)
	if !ok {
		return
	}
	rows, err := h.sections.List(c.Request.Context(), cvID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if rows == nil {
		rows = []T{}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *SectionHandler[T, PT]) Create(c *gin.Context) {
	cvID, ok := h.ownedCV(c)
	if !ok {
		return
	}
	row := PT(new(T))
	if err := c.ShouldBindJSON(row); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.sections.Create(c.Request.Context(), cvID, row); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *SectionHandler[T, PT]) Get(c *gin.Context) {
	cvID, ok := h.ownedCV(c)
	if !ok {
		return
	}
	itemID, ok := idParam(c, "item_id", h.name)
	if !ok {
		return
	}
	row, err := h.sections.Get(c.Request.Context(), cvID, itemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// Update 在已有条目上绑定请求体：PUT 与 PATCH 共用，未出现的字段保持原值。
func (h *SectionHandler[T, PT]) Update(c *gin.Context) {
	cvID, ok := h.ownedCV(c)
	if !ok {
		return
	}
	itemID, ok := idParam(c, "item_id", h.name)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	existing, err := h.sections.Get(ctx, cvID, itemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	updated := PT(new(T))
	*updated = *existing
	if err := c.ShouldBindJSON(updated); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.sections.Update(ctx, cvID, existing, updated); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *SectionHandler[T, PT]) Delete(c *gin.Context) {
	cvID, ok := h.ownedCV(c)
	if !ok {
		return
	}
	itemID, ok := idParam(c, "item_id", h.name)
	if !ok {
		return
	}
	if err := h.sections.Delete(c.Request.Context(), cvID, itemID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ownedCV 确认路径中的 CV 属于当前用户。
func (h *SectionHandler[T, PT]) ownedCV(c *gin.Context) (uint, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return 0, false
	}
	cvID, ok := idParam(c, "id", "cv")
	if !ok {
		return 0, false
	}
	if _, err := h.cvs.Get(c.Request.Context(), userID, cvID); err != nil {
		if errors.Is(err, cv.ErrNotFound) || errors.Is(err, cv.ErrInvalidCVID) {
			NotFound(c, "cv not found")
			return 0, false
		}
		loggerFrom(c, h.logger).Error("query cv failed", slog.Any("error", err))
		Internal(c, "failed to query cv")
		return 0, false
	}
	return cvID, true
}

func (h *SectionHandler[T, PT]) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cv.ErrSectionNotFound):
		NotFound(c, h.name+" not found")
	case database.IsValidationError(err):
		BadRequest(c, err.Error())
	default:
		loggerFrom(c, h.logger).Error("section operation failed", slog.String("section", h.name), slog.Any("error", err))
		Internal(c, "failed to process "+h.name)
	}
}
