package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/coverletter"
	"cvbuilder/internal/render"
)

// CoverLetterHandler 负责求职信的生成与编辑。
type CoverLetterHandler struct {
	letters *coverletter.Service
	logger  *slog.Logger
}

func NewCoverLetterHandler(letters *coverletter.Service, logger *slog.Logger) *CoverLetterHandler {
	return &CoverLetterHandler{letters: letters, logger: logger}
}

type coverLetterRequest struct {
	CVID           *uint  `json:"cv_id"`
	UploadedCVID   *uint  `json:"uploaded_cv_id"`
	CVText         string `json:"cv_text"`
	JobTitle       string `json:"job_title" binding:"required,max=200"`
	CompanyName    string `json:"company_name" binding:"max=200"`
	JobDescription string `json:"job_description" binding:"required"`
	Tone           string `json:"tone"`
	TemplateType   string `json:"template_type"`
}

type regenerateRequest struct {
	Tone string `json:"tone"`
}

func (h *CoverLetterHandler) ListCoverLetters(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	letters, err := h.letters.List(c.Request.Context(), userID)
	if err != nil {
		loggerFrom(c, h.logger).Error("list cover letters failed", slog.Any("error", err))
		Internal(c, "failed to list cover letters")
		return
	}
	c.JSON(http.StatusOK, letters)
}

// CreateCoverLetter 生成求职信；素材来自 CV、上传简历或直接粘贴的文本。
func (h *CoverLetterHandler) CreateCoverLetter(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req coverLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	letter, err := h.letters.Generate(c.Request.Context(), userID, coverletter.GenerateInput{
		CVID:           req.CVID,
		UploadedCVID:   req.UploadedCVID,
		CVText:         req.CVText,
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

func (h *CoverLetterHandler) GetCoverLetter(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id", "cover letter")
	if !ok {
		return
	}
	letter, err := h.letters.Get(c.Request.Context(), userID, id)
	if err != nil {
		coverLetterError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, letter)
}

// UpdateCoverLetter 处理 PUT 与 PATCH，未出现的字段保持不变。
func (h *CoverLetterHandler) UpdateCoverLetter(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id", "cover letter")
	if !ok {
		return
	}
	var patch coverletter.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	letter, err := h.letters.Get(ctx, userID, id)
	if err != nil {
		coverLetterError(c, loggerFrom(c, h.logger), err)
		return
	}
	if err := h.letters.Update(ctx, letter, patch); err != nil {
		coverLetterError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, letter)
}

func (h *CoverLetterHandler) DeleteCoverLetter(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id", "cover letter")
	if !ok {
		return
	}
	if err := h.letters.Delete(c.Request.Context(), userID, id); err != nil {
		coverLetterError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegenerateCoverLetter 用保存的输入重新生成，可选地换一种语气。
func (h *CoverLetterHandler) RegenerateCoverLetter(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id", "cover letter")
	if !ok {
		return
	}
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		BadRequest(c, err.Error())
		return
	}

	letter, err := h.letters.Regenerate(c.Request.Context(), userID, id, req.Tone)
	if err != nil {
		coverLetterError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, letter)
}

// PreviewCoverLetter 用内置版式渲染求职信。
func (h *CoverLetterHandler) PreviewCoverLetter(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id", "cover letter")
	if !ok {
		return
	}
	letter, err := h.letters.Get(c.Request.Context(), userID, id)
	if err != nil {
		coverLetterError(c, loggerFrom(c, h.logger), err)
		return
	}
	html, err := render.CoverLetter(nil, letter)
	if err != nil {
		loggerFrom(c, h.logger).Error("render cover letter failed", slog.Any("error", err))
		Internal(c, "failed to render cover letter")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// coverLetterError 把求职信服务的错误映射为 HTTP 状态码。
func coverLetterError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case coverletter.IsValidationError(err):
		BadRequest(c, err.Error())
	case errors.Is(err, coverletter.ErrSourceNotFound):
		NotFound(c, "cv not found")
	case errors.Is(err, coverletter.ErrNotFound):
		NotFound(c, "cover letter not found")
	case errors.Is(err, coverletter.ErrQuotaExceeded):
		TooManyRequests(c, err.Error())
	default:
		logger.Error("cover letter operation failed", slog.Any("error", err))
		Internal(c, "failed to process cover letter")
	}
}
