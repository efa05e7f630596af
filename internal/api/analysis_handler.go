package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvbuilder/internal/analysis"
	"cvbuilder/internal/database"
	"cvbuilder/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalysisHandler 提供分析记录的查询、删除与导出。
type AnalysisHandler struct {
	db       *gorm.DB
	analyses *analysis.Service
	logger   *slog.Logger
	now      func() time.Time
}

func NewAnalysisHandler(db *gorm.DB, analyses *analysis.Service, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{db: db, analyses: analyses, logger: logger, now: time.Now}
}

func (h *AnalysisHandler) ListAnalyses(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	rows, err := h.analyses.ListForUser(c.Request.Context(), userID)
	if err != nil {
		loggerFrom(c, h.logger).Error("list analyses failed", slog.Any("error", err))
		Internal(c, "failed to list analyses")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GetAnalysis 返回分析记录与分数汇总。
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis":  row,
		"breakdown": analysis.Breakdown(row),
	})
}

func (h *AnalysisHandler) DeleteAnalysis(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Delete(row).Error; err != nil {
		loggerFrom(c, h.logger).Error("delete analysis failed", slog.Any("error", err))
		Internal(c, "failed to delete analysis")
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportAnalyses 把当前用户全部分析导出为 xlsx 附件。
func (h *AnalysisHandler) ExportAnalyses(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var uploads []database.UploadedCV
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Analysis").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&uploads).Error; err != nil {
		loggerFrom(c, h.logger).Error("query analyses for export failed", slog.Any("error", err))
		Internal(c, "failed to export analyses")
		return
	}

	rows := make([]export.Row, 0, len(uploads))
	for _, u := range uploads {
		if u.Analysis == nil {
			continue
		}
		rows = append(rows, export.Row{
			Filename:   u.OriginalFilename,
			Title:      u.Title,
			AnalyzedAt: u.Analysis.UpdatedAt,
			Source:     u.Analysis.Source,
			Analysis:   analysis.ToScoring(u.Analysis),
		})
	}

	now := h.now()
	data, err := export.AnalysesWorkbook(rows, now)
	if err != nil {
		loggerFrom(c, h.logger).Error("build analyses workbook failed", slog.Any("error", err))
		Internal(c, "failed to export analyses")
		return
	}

	filename := "cv-analyses-" + now.Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *AnalysisHandler) load(c *gin.Context) (*database.CVAnalysis, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	id, ok := idParam(c, "id", "analysis")
	if !ok {
		return nil, false
	}
	row, err := h.analyses.GetForUser(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			NotFound(c, "analysis not found")
			return nil, false
		}
		loggerFrom(c, h.logger).Error("query analysis failed", slog.Any("error", err))
		Internal(c, "failed to query analysis")
		return nil, false
	}
	return row, true
}
