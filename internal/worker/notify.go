package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"cvbuilder/internal/tasks"
)

// 通知状态。
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// NotifyMessage 通过 Redis Pub/Sub 转发给前端的 WebSocket 消息。
// 字段名与前端解析保持一致。
type NotifyMessage struct {
	Status        string `json:"status"`
	CVID          uint   `json:"cv_id,omitempty"`
	TemplateID    uint   `json:"template_id,omitempty"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// Publisher 是 *redis.Client 的发布能力子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// ObjectStore 是 worker 用到的对象存储能力。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

func publishNotify(ctx context.Context, publisher Publisher, userID uint, msg NotifyMessage) error {
	if publisher == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := tasks.NotifyChannel(userID)
	if err := publisher.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

// lastAttemptFailed 判断任务是否不会再重试：已用完重试次数，或错误标记为 SkipRetry。
func lastAttemptFailed(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, asynq.SkipRetry) || isFinalAsynqAttempt(ctx)
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
