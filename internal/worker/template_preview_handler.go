package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
	"cvbuilder/internal/pdf"
	"cvbuilder/internal/render"
	"cvbuilder/internal/storage"
	"cvbuilder/internal/tasks"
)

const previewQuality = 80

// TemplatePreviewHandler 负责模板缩略图生成任务。
type TemplatePreviewHandler struct {
	db        *gorm.DB
	storage   ObjectStore
	renderer  pdf.Renderer
	publisher Publisher
	logger    *slog.Logger
}

func NewTemplatePreviewHandler(db *gorm.DB, store ObjectStore, renderer pdf.Renderer, publisher Publisher, logger *slog.Logger) *TemplatePreviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplatePreviewHandler{
		db:        db,
		storage:   store,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *TemplatePreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal template preview payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal template preview payload: %w", asynq.SkipRetry)
	}

	log = log.With(
		slog.Uint64("template_id", uint64(payload.TemplateID)),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("starting template preview generation")

	var template database.Template
	if err := h.db.WithContext(ctx).First(&template, payload.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("template not found, skipping task")
			return nil
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}

	// 系统模板没有创建者，不发通知。
	defer func() {
		if template.CreatedByID == nil || !lastAttemptFailed(ctx, retErr) {
			return
		}
		notify := NotifyMessage{
			Status:        StatusError,
			TemplateID:    template.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishNotify(ctx, h.publisher, *template.CreatedByID, notify); err != nil {
			log.Error("publish template preview error failed", slog.Any("error", err))
		}
	}()

	html, err := render.Preview(&template)
	if err != nil {
		// 模板内容本身有误，重试没有意义。
		log.Warn("render template preview failed", slog.Any("error", err))
		return fmt.Errorf("render template preview: %v: %w", err, asynq.SkipRetry)
	}

	previewBytes, err := h.renderer.Screenshot(html, previewQuality)
	if err != nil {
		log.Error("capture template screenshot failed", slog.Any("error", err))
		return err
	}

	objectName := storage.TemplatePreviewKey(template.ID)
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(previewBytes), int64(len(previewBytes)), "image/jpeg"); err != nil {
		log.Error("upload template preview failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).
		Model(&template).
		Update("preview_image_key", objectName).Error; err != nil {
		log.Error("update template preview key failed", slog.Any("error", err))
		return err
	}

	if template.CreatedByID != nil {
		notify := NotifyMessage{
			Status:        StatusCompleted,
			TemplateID:    template.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.OK,
		}
		if err := publishNotify(ctx, h.publisher, *template.CreatedByID, notify); err != nil {
			log.Error("publish template preview notification failed", slog.Any("error", err))
		}
	}

	log.Info("template preview generation completed", slog.String("object_key", objectName))
	return nil
}
