package core

import (
	"context"
)

// LoggerAuditRecorder writes audit entries to a Logger at info level.
type LoggerAuditRecorder struct {
	Logger Logger
}

// Record implements AuditRecorder.
func (r LoggerAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	if r.Logger == nil {
		return
	}
	args := []any{
		"operation", entry.Operation,
		"caller", entry.Caller,
		"status", entry.Status,
		"duration", entry.Duration,
		"at", entry.Timestamp,
	}
	if entry.CreatureID != nil {
		args = append(args, "creature_id", *entry.CreatureID)
	}
	if entry.Error != "" {
		args = append(args, "error", entry.Error)
	}
	r.Logger.Info("audit", args...)
}
