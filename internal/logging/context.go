package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if conv, ok := ctx.Value(conversationCtxKey{}).(conversation); ok {
		fields = append(fields,
			zap.String("slack.channel", conv.channel),
			zap.String("slack.thread", conv.thread),
		)
	}

	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}

	if id, ok := ctx.Value(eventCtxKey{}).(string); ok {
		fields = append(fields, zap.String("slack.event_id", id))
	}

	return fields
}

type conversationCtxKey struct{}
type requestCtxKey struct{}
type eventCtxKey struct{}

type conversation struct {
	channel string
	thread  string
}

// WithConversation tags ctx with the Slack channel and thread being handled.
func WithConversation(ctx context.Context, channel, thread string) context.Context {
	return context.WithValue(ctx, conversationCtxKey{}, conversation{channel: channel, thread: thread})
}

// WithEventID tags ctx with the Slack event id.
func WithEventID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, eventCtxKey{}, id)
}

// WithRequestID tags ctx with the HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}
