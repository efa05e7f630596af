package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/auth"
)

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// BearerToken 从 Authorization 头取出 Bearer 令牌，格式不符时返回空串。
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthMiddleware 校验访问令牌，并把 userID 与改密标记写入上下文。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken := BearerToken(c.GetHeader("Authorization"))
		if rawToken == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateTokenOfType(rawToken, auth.TokenTypeAccess)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(MustChangePasswordKey, claims.MustChangePassword)
		if logger := LoggerFromContext(c); logger != nil {
			c.Set(slogLoggerKey, logger.With("user_id", claims.UserID))
		}
		c.Next()
	}
}
