package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from ctx: trace ids, the request
// id, and the content ref a request operates on.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if ref, ok := ContentFromContext(ctx); ok {
		fields = append(fields,
			zap.String("content.kind", ref.Kind),
			zap.String("content.id", ref.ID),
		)
	}
	return fields
}

type (
	requestCtxKey struct{}
	contentCtxKey struct{}
	loggerCtxKey  struct{}
)

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && idPattern.MatchString(id)
}

// WithRequestID adds a request id to ctx. Ids that are empty, longer than
// 128 bytes or outside [A-Za-z0-9_.:-] are dropped.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if !validID(requestID) {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// Content identifies the piece of content a selection belongs to.
type Content struct {
	Kind string
	ID   string
}

// WithContent adds a content ref to ctx. Invalid refs are dropped.
func WithContent(ctx context.Context, kind, id string) context.Context {
	if !validID(kind) || !validID(id) {
		return ctx
	}
	return context.WithValue(ctx, contentCtxKey{}, Content{Kind: kind, ID: id})
}

// ContentFromContext returns the content ref, if any.
func ContentFromContext(ctx context.Context) (Content, bool) {
	c, ok := ctx.Value(contentCtxKey{}).(Content)
	return c, ok
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Nop()
}
