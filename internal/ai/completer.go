package ai

import (
	"context"
	"errors"
)

var errEmptyResponse = errors.New("empty completion response")

// CompletionRequest 描述一次文本补全请求。
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Completer 是对 LLM 提供方的最小抽象，一次调用对应一次同步请求。
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
