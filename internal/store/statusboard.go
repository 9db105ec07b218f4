package store

import (
	"context"

	"registration-service/internal/models"
)

// ListRegistrationRows returns the denormalized registration list the admin
// status board renders, ordered by group name then last name.
func (s *Store) ListRegistrationRows(ctx context.Context) ([]models.RegistrationRow, error) {
	query := `
		SELECT r.id, r.status, r.cancellation_reason, p.status AS payment_status,
		       u.id AS user_id, u.first_name, u.last_name, u.email, u.country_code,
		       g.id AS group_id, g.name AS group_name
		FROM event_registrations r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN groups g ON g.id = u.group_id
		LEFT JOIN transactions t
		       ON t.event_registration_id = r.id AND t.direction = $1
		LEFT JOIN payments p ON p.id = t.payment_id
		ORDER BY g.name ASC NULLS LAST, u.last_name ASC`

	var rows []models.RegistrationRow
	err := s.db.SelectContext(ctx, &rows, query, models.DirectionUserToOrg)
	return rows, err
}

// ListGroups returns all groups ordered by name
func (s *Store) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.SelectContext(ctx, &groups, "SELECT id, name FROM groups ORDER BY name")
	return groups, err
}
