// internal/logging/context.go
package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	moduleKey ctxKey = iota
	requestIDKey
)

// Module identifies the module instance a log line belongs to.
type Module struct {
	Name string
	ID   string
}

// requestIDPattern matches IDs generated by echo and typical client IDs.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ContextFields returns the fields every entry logged with ctx carries:
// trace and span IDs of an active span, the module and the request ID.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.Stringer("trace_id", sc.TraceID()),
			zap.Stringer("span_id", sc.SpanID()),
		)
	}
	if mod, ok := ModuleFromContext(ctx); ok {
		fields = append(fields,
			zap.String("module.name", mod.Name),
			zap.String("module.id", mod.ID),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

func WithModule(ctx context.Context, mod Module) context.Context {
	return context.WithValue(ctx, moduleKey, mod)
}

func ModuleFromContext(ctx context.Context) (Module, bool) {
	mod, ok := ctx.Value(moduleKey).(Module)
	return mod, ok
}

// WithRequestID attaches id to ctx. Request IDs can come from clients, so
// an id that is empty, longer than 128 bytes or outside [A-Za-z0-9_-]
// leaves ctx unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if !requestIDPattern.MatchString(id) {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
