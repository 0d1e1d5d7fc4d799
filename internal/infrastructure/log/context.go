package log

import (
	"context"
	"log/slog"
)

// 上下文键定义
const (
	// RequestContextID HTTP 请求 ID
	RequestContextID = "request_id"

	// SessionContextID 事件所属会话 ID
	SessionContextID = "session_id"

	// SubscriberContextID WebSocket 订阅者 ID
	SubscriberContextID = "subscriber_id"

	// SourceContextID 事件来源标识
	SourceContextID = "source"
)

// WithRequestID 在上下文中添加请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestContextID, requestID)
}

// WithSessionID 在上下文中添加会话 ID
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionContextID, sessionID)
}

// WithSubscriberID 在上下文中添加订阅者 ID
func WithSubscriberID(ctx context.Context, subscriberID string) context.Context {
	return context.WithValue(ctx, SubscriberContextID, subscriberID)
}

// WithSource 在上下文中添加事件来源
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceContextID, source)
}

// LogCtxFromContext 从上下文中提取日志字段
func LogCtxFromContext(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if requestID := ctx.Value(RequestContextID); requestID != nil {
		attrs = append(attrs, slog.String("request_id", requestID.(string)))
	}
	if sessionID := ctx.Value(SessionContextID); sessionID != nil {
		attrs = append(attrs, slog.String("session_id", sessionID.(string)))
	}
	if subscriberID := ctx.Value(SubscriberContextID); subscriberID != nil {
		attrs = append(attrs, slog.String("subscriber_id", subscriberID.(string)))
	}
	if source := ctx.Value(SourceContextID); source != nil {
		attrs = append(attrs, slog.String("source", source.(string)))
	}

	return attrs
}
