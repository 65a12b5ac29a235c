package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

// LogDenied records an authorization denial on a surface
func (al *Logger) LogDenied(ctx context.Context, userID, surface, permission string) {
	al.LogAction(ctx, userID, "access_denied", surface, "", "denied", "missing permission "+permission)
}

// LogAdminAccess records access to an admin surface
func (al *Logger) LogAdminAccess(ctx context.Context, userID, surface string) {
	al.LogAction(ctx, userID, "admin_access", surface, "", "granted", "")
}

// LogSessionRevoked records a logout revocation
func (al *Logger) LogSessionRevoked(ctx context.Context, userID, tokenID string) {
	al.LogAction(ctx, userID, "session_revoked", "session", tokenID, "ok", "")
}
