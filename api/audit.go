package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditDocumentRead     AuditEvent = "document_read"
	AuditDocumentWritten  AuditEvent = "document_written"
	AuditWriteConflict    AuditEvent = "write_conflict"
	AuditWriteRateLimited AuditEvent = "write_rate_limited"
	AuditAuthFailure      AuditEvent = "auth_failure"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit entry. Request bodies and document
// contents never appear here; contents may be encrypted client data.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit",
		append(baseAttrs, attrs...)...)
}
