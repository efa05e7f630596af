package errcode

// 通知消息中的错误码：
// - 0：无错误
// - 4xxx：可恢复的告警（例如自定义模板渲染失败，已回退到内置版式）
// - 5xxx：系统错误（任务失败）
const (
	OK               = 0
	TemplateFallback = 4001
	SystemError      = 5000
)
