// Package tasks 定义 API 与 worker 共用的异步任务类型与载荷。
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeCVExportPDF     = "cv:export_pdf"
	TypeTemplatePreview = "template:preview"
)

// CVExportPayload 描述导出 CV PDF 所需的最小信息。
type CVExportPayload struct {
	CVID          uint   `json:"cv_id"`
	CorrelationID string `json:"correlation_id"`
}

// TemplatePreviewPayload 描述生成模板预览图所需的信息。
type TemplatePreviewPayload struct {
	TemplateID    uint   `json:"template_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewCVExportTask 构造 CV PDF 导出任务。
func NewCVExportTask(cvID uint, correlationID string) (*asynq.Task, error) {
	return newTask(TypeCVExportPDF, CVExportPayload{CVID: cvID, CorrelationID: correlationID})
}

// NewTemplatePreviewTask 构造模板预览图生成任务。
func NewTemplatePreviewTask(templateID uint, correlationID string) (*asynq.Task, error) {
	return newTask(TypeTemplatePreview, TemplatePreviewPayload{TemplateID: templateID, CorrelationID: correlationID})
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data, asynq.MaxRetry(3)), nil
}

// NotifyChannel 返回用户通知的 Redis Pub/Sub 频道，worker 发布、WebSocket 订阅。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}
