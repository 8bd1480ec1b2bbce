// Package logger 提供結構化日誌功能
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// contextKey 用於上下文的鍵類型
type contextKey string

const (
	// RequestIDKey 請求 ID 的上下文鍵
	RequestIDKey contextKey = "request_id"
	// SlotKey 連線槽位的上下文鍵
	SlotKey contextKey = "slot"
	// IdentityKey 玩家帳號識別碼的上下文鍵
	IdentityKey contextKey = "identity"
)

// defaultLogger 預設日誌記錄器
var defaultLogger *slog.Logger

// Init 初始化日誌系統並設為 slog 預設值
func Init(level, format, outputPath string, addSource bool) (*slog.Logger, error) {
	var output io.Writer
	switch outputPath {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		// #nosec G304 - outputPath 來自配置檔
		file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}
		output = file
	}

	defaultLogger = New(output, level, format, addSource)
	slog.SetDefault(defaultLogger)

	return defaultLogger, nil
}

// New 建立寫入 w 的日誌記錄器，不影響全域設定
func New(w io.Writer, level, format string, addSource bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: addSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					// 使用台北時區
					loc, _ := time.LoadLocation("Asia/Taipei")
					if loc != nil {
						t = t.In(loc)
					}
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05.000"))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(&contextHandler{Handler: handler})
}

// ParseLevel 解析日誌級別
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler 從上下文中提取資訊的處理器
type contextHandler struct {
	slog.Handler
}

// Handle 處理日誌記錄
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}

	if slot, ok := ctx.Value(SlotKey).(int); ok {
		r.AddAttrs(slog.Int("slot", slot))
	}

	if identity, ok := ctx.Value(IdentityKey).(string); ok && identity != "" {
		r.AddAttrs(slog.String("identity", identity))
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs 保留 context 提取行為
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup 保留 context 提取行為
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithContext 返回預設日誌記錄器
func WithContext(ctx context.Context) *slog.Logger {
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger
}

// WithRequestID 添加請求 ID 到上下文
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithSlot 添加槽位到上下文
func WithSlot(ctx context.Context, slot int) context.Context {
	return context.WithValue(ctx, SlotKey, slot)
}

// WithIdentity 添加玩家識別碼到上下文
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// LogError 記錄錯誤並包含呼叫位置
func LogError(ctx context.Context, msg string, err error) {
	logger := WithContext(ctx)

	pc, file, line, ok := runtime.Caller(1)
	if ok {
		fn := runtime.FuncForPC(pc)
		logger.ErrorContext(ctx, msg,
			slog.String("error", err.Error()),
			slog.String("file", file),
			slog.Int("line", line),
			slog.String("function", fn.Name()),
		)
	} else {
		logger.ErrorContext(ctx, msg, slog.String("error", err.Error()))
	}
}

// Metrics 記錄指標日誌
func Metrics(ctx context.Context, operation string, duration time.Duration, attrs ...slog.Attr) {
	logger := WithContext(ctx)

	baseAttrs := []any{
		slog.String("operation", operation),
		slog.Duration("duration", duration),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}

	for _, attr := range attrs {
		baseAttrs = append(baseAttrs, attr)
	}

	logger.InfoContext(ctx, "metrics", baseAttrs...)
}
