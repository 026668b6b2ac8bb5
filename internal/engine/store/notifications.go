// internal/engine/store/notifications.go
package store

import (
	"context"
	"database/sql"
	"strings"

	"subtrack-notifier/internal/models"
)

// NotificationStore inserts in-app notification records. The feed UI that
// reads them is outside this service.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Insert(ctx context.Context, n *models.InAppNotification) error {
	const query = `INSERT INTO in_app_notifications
		(id, tenant_id, recipient_id, recipient_email, entity_id, entity_type, event, roles, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	roles := make([]string, 0, len(n.Roles))
	for _, r := range n.Roles {
		roles = append(roles, string(r))
	}

	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.TenantID, nullIfEmpty(n.RecipientID), n.RecipientEmail,
		n.EntityID, string(n.EntityType), string(n.Event),
		strings.Join(roles, ","), n.Message, n.Read, n.CreatedAt,
	)
	return err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
