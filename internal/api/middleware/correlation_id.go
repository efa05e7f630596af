package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 客户端传入的 Correlation ID 超过该长度时重新生成。
const maxCorrelationIDLen = 128

// CorrelationIDMiddleware 确保每个请求都带有 Correlation ID，并回写到响应头。
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" || len(id) > maxCorrelationIDLen {
			id = uuid.NewString()
		}

		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)

		c.Next()
	}
}

// GetCorrelationID 从上下文中取出 Correlation ID。
func GetCorrelationID(c *gin.Context) string {
	if value, ok := c.Get(correlationIDKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
