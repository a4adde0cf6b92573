// Package observability provides tracing, domain metrics and audit logging.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

var auditLogger atomic.Pointer[slog.Logger]

func init() {
	auditLogger.Store(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// SetAuditLogger routes audit records through l, normally the request-aware app logger.
func SetAuditLogger(l *slog.Logger) {
	if l != nil {
		auditLogger.Store(l)
	}
}

// Audit records a security-relevant account event (signup, login failure,
// password reset, account deletion) and bumps the matching counter.
func Audit(ctx context.Context, event string, userID uint, err error, attrs ...slog.Attr) {
	outcome := Outcome(err)
	AuthEvents.WithLabelValues(event, outcome).Inc()

	all := make([]slog.Attr, 0, len(attrs)+4)
	all = append(all,
		slog.String("audit_event", event),
		slog.String("outcome", outcome),
	)
	if userID != 0 {
		all = append(all, slog.Uint64("subject_id", uint64(userID)))
	}
	if err != nil {
		all = append(all, slog.String("error", err.Error()))
	}
	all = append(all, attrs...)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	auditLogger.Load().LogAttrs(ctx, level, "audit", all...)
}
