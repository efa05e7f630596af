package api

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"cvbuilder/internal/api/middleware"
)

// ObjectStorage 是处理器用到的对象存储能力，由 *storage.Client 实现。
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	ReadObject(ctx context.Context, objectKey string, limit int64) ([]byte, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	GeneratePresignedURLWithParams(ctx context.Context, objectKey string, duration time.Duration, params map[string]string) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// TaskEnqueuer 由 *asynq.Client 实现。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	default:
		return 0, false
	}
}

// idParam 解析路径中的正整数 ID，失败时直接写入 400。
func idParam(c *gin.Context, name, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+label+" id")
		return 0, false
	}
	return uint(id), true
}

func loggerFrom(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	return middleware.LoggerFromContextOr(c, fallback)
}

// attachmentParams 生成让浏览器以附件形式下载的预签名参数。
func attachmentParams(filename string) map[string]string {
	return map[string]string{
		"response-content-disposition": `attachment; filename="` + filename + `"`,
	}
}
