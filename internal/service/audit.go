package service

import (
	"context"
	"encoding/json"

	"registration-service/internal/models"
	"registration-service/internal/util"

	"go.uber.org/zap"
)

// AuditStore is the slice of the persistence layer the audit logger needs.
type AuditStore interface {
	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
}

// AuditLogger records anomalies as append-only activity log entries. It
// never returns an error and never interrupts the caller's control flow;
// a failed write is reported through the process logger only.
type AuditLogger struct {
	store  AuditStore
	logger *zap.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(store AuditStore, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{store: store, logger: logger}
}

// Warn records a warning-severity anomaly
func (a *AuditLogger) Warn(ctx context.Context, message string, data, oldData interface{}) {
	a.write(ctx, models.SeverityWarning, message, data, oldData)
}

// Error records an error-severity anomaly
func (a *AuditLogger) Error(ctx context.Context, message string, data, oldData interface{}) {
	a.write(ctx, models.SeverityError, message, data, oldData)
}

func (a *AuditLogger) write(ctx context.Context, severity, message string, data, oldData interface{}) {
	entry := &models.ActivityLog{
		Severity: severity,
		Category: "webhook",
		Message:  message,
		Data:     marshalLoose(data),
		OldData:  marshalLoose(oldData),
	}

	if err := a.store.CreateActivityLog(ctx, entry); err != nil {
		a.logger.Error("Failed to write activity log entry",
			zap.String("message", message),
			zap.Error(err))
		return
	}

	util.AuditEntriesTotal.WithLabelValues(severity).Inc()
	a.logger.Warn("Reconciliation anomaly recorded",
		zap.String("severity", severity),
		zap.String("message", message))
}

func marshalLoose(v interface{}) []byte {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	if raw, ok := v.([]byte); ok {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"marshal_error":true}`)
	}
	return b
}
