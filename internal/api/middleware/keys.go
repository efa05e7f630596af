package middleware

// gin 上下文中的键。
const (
	UserIDKey             = "userID"
	MustChangePasswordKey = "mustChangePassword"
	correlationIDKey      = "correlationID"
	slogLoggerKey         = "slogLogger"
)

// CorrelationIDHeader 是请求与响应中携带 Correlation ID 的头。
const CorrelationIDHeader = "X-Correlation-ID"
