package license

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"regsys/internal/infrastructure"
)

// logAction writes one structured entry per engine action and mirrors it as a
// span event. Fingerprints are masked by the callers.
func (e *Engine) logAction(ctx context.Context, level slog.Level, action, result string, attrs ...slog.Attr) {
	if !e.logger.Enabled(ctx, level) && !trace.SpanFromContext(ctx).IsRecording() {
		return
	}

	infrastructure.AddSpanEvent(ctx, "license."+action, map[string]interface{}{
		"action": action,
		"result": result,
	})

	allAttrs := []slog.Attr{slog.String("action", action)}
	if spanTrace := trace.SpanContextFromContext(ctx); spanTrace.IsValid() {
		allAttrs = append(allAttrs, slog.String("span_trace_id", spanTrace.TraceID().String()))
	}
	allAttrs = append(allAttrs, attrs...)

	e.logger.LogAttrs(ctx, level, result, allAttrs...)
}

func (e *Engine) logDebug(ctx context.Context, action, result string, attrs ...slog.Attr) {
	e.logAction(ctx, slog.LevelDebug, action, result, attrs...)
}

func (e *Engine) logInfo(ctx context.Context, action, result string, attrs ...slog.Attr) {
	e.logAction(ctx, slog.LevelInfo, action, result, attrs...)
}

func (e *Engine) logWarn(ctx context.Context, action, result string, attrs ...slog.Attr) {
	e.logAction(ctx, slog.LevelWarn, action, result, attrs...)
}
