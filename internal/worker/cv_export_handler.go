package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
	"cvbuilder/internal/pdf"
	"cvbuilder/internal/render"
	"cvbuilder/internal/storage"
	"cvbuilder/internal/tasks"
)

const templateFallbackMessage = "自定义模板渲染失败，已使用默认版式"

// CVExportHandler 消费 CV PDF 导出任务。
type CVExportHandler struct {
	db        *gorm.DB
	storage   ObjectStore
	renderer  pdf.Renderer
	publisher Publisher
	logger    *slog.Logger
}

// NewCVExportHandler 创建任务处理器。
func NewCVExportHandler(db *gorm.DB, store ObjectStore, renderer pdf.Renderer, publisher Publisher, logger *slog.Logger) *CVExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CVExportHandler{
		db:        db,
		storage:   store,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *CVExportHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.CVExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal cv export payload: %w", asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("cv_id", uint64(payload.CVID)),
	)
	log.Info("starting cv pdf export")

	doc, err := cv.Load(ctx, h.db, payload.CVID)
	if err != nil {
		if errors.Is(err, cv.ErrNotFound) {
			log.Warn("cv not found, skipping task")
			return nil
		}
		log.Error("query cv failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(doc.UserID)))

	defer func() {
		if !lastAttemptFailed(ctx, retErr) {
			return
		}
		if err := h.db.WithContext(ctx).Model(&database.CV{}).
			Where("id = ?", doc.ID).
			Update("pdf_status", database.PdfStatusFailed).Error; err != nil {
			log.Error("mark pdf failed", slog.Any("error", err))
		}
		notify := NotifyMessage{
			Status:        StatusError,
			CVID:          doc.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishNotify(ctx, h.publisher, doc.UserID, notify); err != nil {
			log.Error("publish pdf error notification failed", slog.Any("error", err))
		}
	}()

	html, fallback, err := renderCV(doc)
	if err != nil {
		log.Error("render cv html failed", slog.Any("error", err))
		return err
	}
	if fallback {
		log.Warn("custom template failed, using default layout", slog.Any("template_id", doc.TemplateID))
	}

	pdfBytes, err := h.renderer.PDF(html)
	if err != nil {
		log.Error("generate pdf failed", slog.Any("error", err))
		return err
	}

	objectName := storage.ExportedCVKey(doc.UserID, doc.ID, uuid.NewString())
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	previous := doc.PdfKey
	if err := h.db.WithContext(ctx).Model(&database.CV{}).
		Where("id = ?", doc.ID).
		Updates(map[string]any{
			"pdf_key":    objectName,
			"pdf_status": database.PdfStatusCompleted,
		}).Error; err != nil {
		log.Error("update cv pdf key failed", slog.Any("error", err))
		return err
	}
	if previous != "" && previous != objectName {
		if err := h.storage.DeleteObject(ctx, previous); err != nil {
			log.Warn("delete previous pdf failed", slog.String("object_key", previous), slog.Any("error", err))
		}
	}

	notify := NotifyMessage{
		Status:        StatusCompleted,
		CVID:          doc.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if fallback {
		notify.ErrorCode = errcode.TemplateFallback
		notify.ErrorMessage = templateFallbackMessage
	}
	if err := publishNotify(ctx, h.publisher, doc.UserID, notify); err != nil {
		// PDF 已经生成，通知失败不重试任务。
		log.Error("publish redis notification failed", slog.Any("error", err))
	}

	log.Info("cv pdf export completed", slog.String("object_key", objectName), slog.Int("bytes", len(pdfBytes)))
	return nil
}

// renderCV 优先使用 CV 绑定的模板，模板渲染失败时回退到内置版式。
func renderCV(doc *database.CV) (html string, fallback bool, err error) {
	html, err = render.CV(doc.Template, doc)
	if err == nil {
		return html, false, nil
	}
	if doc.Template == nil {
		return "", false, fmt.Errorf("render cv: %w", err)
	}
	html, err = render.CV(nil, doc)
	if err != nil {
		return "", false, fmt.Errorf("render cv: %w", err)
	}
	return html, true, nil
}
