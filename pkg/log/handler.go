package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// ErrFmtHandler decorates records that carry an error under ErrAttrKey with the
// error's stack trace and the type of its root cause.
type ErrFmtHandler struct {
	next slog.Handler
}

// WrapByErrFmtHandler wraps next so that error records gain StacktraceAttrKey and
// ErrorTypeKey attributes.
func WrapByErrFmtHandler(next slog.Handler) slog.Handler {
	return &ErrFmtHandler{next: next}
}

func (h *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var cause error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		cause, _ = attr.Value.Any().(error)
		return false
	})
	if cause == nil {
		return h.next.Handle(ctx, r)
	}

	if st := stacktraceOf(cause); st != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, st))
	}
	r.AddAttrs(slog.String(ErrorTypeKey, fmt.Sprintf("%T", errors.UnwrapAll(cause))))
	return h.next.Handle(ctx, r)
}

func (h *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ErrFmtHandler) WithGroup(name string) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithGroup(name)}
}

// stacktraceOf returns the first safe detail, which for errors built with
// cockroachdb/errors is the formatted stack of the outermost withstack wrapper.
func stacktraceOf(err error) string {
	if details := errors.GetSafeDetails(err).SafeDetails; len(details) > 0 {
		return details[0]
	}
	return ""
}
