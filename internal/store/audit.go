package store

import (
	"context"

	"registration-service/internal/models"
)

// CreateActivityLog appends one anomaly record. The activity log is
// write-only from this service; rows are never updated or deleted.
func (s *Store) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (severity, category, message, data, old_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, entry, query,
		entry.Severity, entry.Category, entry.Message, entry.Data, entry.OldData)
}
