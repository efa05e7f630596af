// Package ai 封装对外部 LLM 的同步调用：一次提示、一次请求、解析结果，
// 任何依赖失败都转换为同形状的静态兜底值。
package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"cvbuilder/internal/config"
)

// PlaceholderAPIKey 是示例配置中的占位密钥，视同未配置。
const PlaceholderAPIKey = "your-openai-api-key-here"

// ErrValidation 表示调用参数不合法，调用方应返回 4xx。
var ErrValidation = errors.New("invalid ai request")

// Source 标记结果的来源。
type Source string

const (
	SourceAI       Source = "ai"
	SourceMock     Source = "mock"
	SourceFallback Source = "fallback"
)

// Result 是 AI 调用的结果：成功时 Source 为 SourceAI，否则携带兜底原因。
type Result[T any] struct {
	Value  T
	Source Source
	Reason string
}

// Degraded 表示结果不是来自真实的 LLM 响应。
func (r Result[T]) Degraded() bool {
	return r.Source != SourceAI
}

// Client 是 AI 适配器。completer 为 nil 时处于 mock 模式，构造后不再改变。
type Client struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

// New 使用给定的 completer 构造 Client；completer 为 nil 时进入 mock 模式。
func New(completer Completer, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{completer: completer, timeout: timeout, logger: logger}
}

// NewFromConfig 根据配置选择提供方。缺少密钥或初始化失败时记录日志并进入 mock 模式。
func NewFromConfig(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Provider {
	case "vertex":
		completer, err := newVertexCompleter(ctx, cfg)
		if err != nil {
			logger.Warn("vertex ai unavailable, using mock responses", slog.Any("error", err))
			return New(nil, cfg.Timeout, logger)
		}
		return New(completer, cfg.Timeout, logger)
	default:
		key := strings.TrimSpace(cfg.APIKey)
		if key == "" || key == PlaceholderAPIKey {
			logger.Warn("openai api key not configured, using mock responses")
			return New(nil, cfg.Timeout, logger)
		}
		return New(newOpenAICompleter(cfg), cfg.Timeout, logger)
	}
}

// MockMode 表示客户端是否处于 mock 模式。
func (c *Client) MockMode() bool {
	return c.completer == nil
}

// Close 释放提供方持有的连接。
func (c *Client) Close() error {
	if closer, ok := c.completer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	text, err := c.completer.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

func fallback[T any](logger *slog.Logger, op string, value T, err error) Result[T] {
	logger.Warn("ai request failed, using fallback", slog.String("operation", op), slog.Any("error", err))
	return Result[T]{Value: value, Source: SourceFallback, Reason: err.Error()}
}

func mocked[T any](value T) Result[T] {
	return Result[T]{Value: value, Source: SourceMock, Reason: "ai client in mock mode"}
}
