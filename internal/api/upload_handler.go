package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"cvbuilder/internal/analysis"
	"cvbuilder/internal/database"
	"cvbuilder/internal/extract"
	"cvbuilder/internal/metrics"
	"cvbuilder/internal/ratelimit"
	"cvbuilder/internal/storage"
	"cvbuilder/internal/textproc"
)

// UploadHandler 负责用户上传的简历文件。
type UploadHandler struct {
	db        *gorm.DB
	storage   ObjectStorage
	validator *extract.Validator
	scanner   *extract.Scanner
	extractor *extract.Extractor
	analyses  *analysis.Service
	quota     *ratelimit.Daily
	logger    *slog.Logger
}

// NewUploadHandler 构造 UploadHandler；quota 为 nil 时不限制每日上传次数。
func NewUploadHandler(
	db *gorm.DB,
	storageClient ObjectStorage,
	validator *extract.Validator,
	scanner *extract.Scanner,
	extractor *extract.Extractor,
	analyses *analysis.Service,
	quota *ratelimit.Daily,
	logger *slog.Logger,
) *UploadHandler {
	return &UploadHandler{
		db:        db,
		storage:   storageClient,
		validator: validator,
		scanner:   scanner,
		extractor: extractor,
		analyses:  analyses,
		quota:     quota,
		logger:    logger,
	}
}

// ListUploads 返回当前用户的上传记录，附带已有的分析结果。
func (h *UploadHandler) ListUploads(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var rows []database.UploadedCV
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Analysis").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		loggerFrom(c, h.logger).Error("list uploads failed", slog.Any("error", err))
		Internal(c, "failed to list uploads")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// CreateUpload 校验、扫描并保存上传的简历，同时抽取纯文本。
func (h *UploadHandler) CreateUpload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)

	// multipart 包装会带来额外字节，这里只防止请求体无限制增长，精确大小由 Validator 判定。
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.validator.MaxBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.ObserveUpload("rejected")
			BadRequest(c, extract.ErrFileTooLarge.Error())
			return
		}
		BadRequest(c, "file is required")
		return
	}
	if err := h.validator.CheckSize(header.Size); err != nil {
		metrics.ObserveUpload("rejected")
		BadRequest(c, err.Error())
		return
	}

	file, err := header.Open()
	if err != nil {
		Internal(c, "failed to open uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.validator.MaxBytes+1))
	if err != nil {
		Internal(c, "failed to read uploaded file")
		return
	}
	mimeType, err := h.validator.Validate(header.Filename, data)
	if err != nil {
		metrics.ObserveUpload("rejected")
		BadRequest(c, err.Error())
		return
	}

	if err := h.scanner.Scan(data); err != nil {
		if errors.Is(err, extract.ErrMalicious) {
			logger.Warn("infected upload rejected", slog.String("filename", header.Filename))
			metrics.ObserveUpload("infected")
			BadRequest(c, "file is infected")
			return
		}
		logger.Error("virus scan failed", slog.Any("error", err))
		metrics.ObserveUpload("error")
		Internal(c, "failed to scan file")
		return
	}

	// 只有通过校验与扫描的文件才计入当日配额。
	if allowed, err := h.quota.Allow(ctx, userID); err != nil {
		logger.Warn("upload quota check failed, allowing", slog.Any("error", err))
	} else if !allowed {
		metrics.ObserveUpload("throttled")
		TooManyRequests(c, "daily upload limit reached")
		return
	}

	text, processed := h.extractor.Text(mimeType, data)

	ext := strings.ToLower(filepath.Ext(header.Filename))
	objectKey := storage.UploadedCVKey(userID, uuid.NewString(), ext)
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		logger.Error("upload cv to storage failed", slog.Any("error", err))
		metrics.ObserveUpload("error")
		Internal(c, "failed to store file")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = textproc.SanitizeFilename(strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename)))
	}
	row := database.UploadedCV{
		UserID:           userID,
		ObjectKey:        objectKey,
		OriginalFilename: filepath.Base(header.Filename),
		Title:            textproc.Truncate(title, 200),
		Description:      strings.TrimSpace(c.PostForm("description")),
		ContentType:      mimeType,
		Size:             int64(len(data)),
		ExtractedText:    text,
		Processed:        processed,
	}
	if err := h.db.WithContext(ctx).Create(&row).Error; err != nil {
		logger.Error("create uploaded cv failed", slog.Any("error", err))
		if delErr := h.storage.DeleteObject(ctx, objectKey); delErr != nil {
			logger.Warn("cleanup stored file failed", slog.String("object_key", objectKey), slog.Any("error", delErr))
		}
		metrics.ObserveUpload("error")
		Internal(c, "failed to save upload")
		return
	}

	metrics.ObserveUpload("accepted")
	logger.Info("cv uploaded",
		slog.Uint64("uploaded_cv_id", uint64(row.ID)),
		slog.String("content_type", mimeType),
		slog.Bool("processed", processed),
	)
	c.JSON(http.StatusCreated, row)
}

// GetUpload 返回单个上传记录。
func (h *UploadHandler) GetUpload(c *gin.Context) {
	row, ok := h.load(c, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, row)
}

type uploadPatchRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description"`
}

// PatchUpload 只允许修改标题与描述。
func (h *UploadHandler) PatchUpload(c *gin.Context) {
	var req uploadPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	row, ok := h.load(c, false)
	if !ok {
		return
	}

	updates := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			BadRequest(c, "title cannot be blank")
			return
		}
		updates["title"] = title
		row.Title = title
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
		row.Description = strings.TrimSpace(*req.Description)
	}
	if len(updates) > 0 {
		if err := h.db.WithContext(c.Request.Context()).Model(row).Updates(updates).Error; err != nil {
			loggerFrom(c, h.logger).Error("update uploaded cv failed", slog.Any("error", err))
			Internal(c, "failed to update upload")
			return
		}
	}
	c.JSON(http.StatusOK, row)
}

// DeleteUpload 删除上传记录、其分析与求职信，再删除存储中的原件。
func (h *UploadHandler) DeleteUpload(c *gin.Context) {
	row, ok := h.load(c, false)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("uploaded_cv_id = ?", row.ID).Delete(&database.CVAnalysis{}).Error; err != nil {
			return fmt.Errorf("delete analysis: %w", err)
		}
		if err := tx.Where("uploaded_cv_id = ?", row.ID).Delete(&database.AICoverLetter{}).Error; err != nil {
			return fmt.Errorf("delete cover letters: %w", err)
		}
		if err := tx.Delete(row).Error; err != nil {
			return fmt.Errorf("delete uploaded cv: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("delete upload failed", slog.Any("error", err))
		Internal(c, "failed to delete upload")
		return
	}

	if err := h.storage.DeleteObject(ctx, row.ObjectKey); err != nil {
		logger.Warn("delete stored file failed", slog.String("object_key", row.ObjectKey), slog.Any("error", err))
	}
	c.Status(http.StatusNoContent)
}

type analyzeRequest struct {
	JobDescription string `json:"job_description"`
}

// AnalyzeUpload 分析上传的简历；再次分析会覆盖同一条分析记录。
func (h *UploadHandler) AnalyzeUpload(c *gin.Context) {
	var req analyzeRequest
	// 请求体可以为空。
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, err.Error())
		return
	}
	row, ok := h.load(c, false)
	if !ok {
		return
	}

	result, err := h.analyses.Analyze(c.Request.Context(), row, req.JobDescription)
	if err != nil {
		loggerFrom(c, h.logger).Error("analyze cv failed", slog.Any("error", err))
		Internal(c, "failed to analyze cv")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis":  result,
		"breakdown": analysis.Breakdown(result),
	})
}

// DownloadLink 返回原件的预签名下载链接。
func (h *UploadHandler) DownloadLink(c *gin.Context) {
	row, ok := h.load(c, false)
	if !ok {
		return
	}
	filename := row.OriginalFilename
	if filename == "" {
		filename = "cv" + filepath.Ext(row.ObjectKey)
	}
	url, err := h.storage.GeneratePresignedURLWithParams(c.Request.Context(), row.ObjectKey, downloadLinkTTL, attachmentParams(filename))
	if err != nil {
		loggerFrom(c, h.logger).Error("generate upload download link failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *UploadHandler) load(c *gin.Context, withAnalysis bool) (*database.UploadedCV, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	id, ok := idParam(c, "id", "upload")
	if !ok {
		return nil, false
	}

	q := h.db.WithContext(c.Request.Context())
	if withAnalysis {
		q = q.Preload("Analysis")
	}
	var row database.UploadedCV
	if err := q.Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "upload not found")
			return nil, false
		}
		loggerFrom(c, h.logger).Error("query uploaded cv failed", slog.Any("error", err))
		Internal(c, "failed to query upload")
		return nil, false
	}
	return &row, true
}
