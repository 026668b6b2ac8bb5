// internal/engine/store/entities.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"subtrack-notifier/internal/models"
)

// entityTable maps each remindable entity family to its table and target-date
// column. Subscriptions have no reminder row in the recipient matrix, so the
// sweep never queries them.
var entityTable = map[models.EntityType]struct {
	table      string
	targetDate string
}{
	models.EntityCompliance:    {table: "compliance_filings", targetDate: "due_date"},
	models.EntityLicense:       {table: "licenses", targetDate: "expiry_date"},
	models.EntityPaymentMethod: {table: "payment_methods", targetDate: "expiry_date"},
}

// EntityStore reads entity snapshots for the reminder sweep. Lifecycle
// dispatches receive their snapshots from the CRUD layer directly.
type EntityStore struct {
	db *sql.DB
}

func NewEntityStore(db *sql.DB) *EntityStore {
	return &EntityStore{db: db}
}

// ListTenants pages through tenant ids.
func (s *EntityStore) ListTenants(ctx context.Context, afterID string, limit int) ([]string, error) {
	const query = `SELECT id FROM tenants WHERE id > $1 ORDER BY id LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

// ListRemindable returns the active entities of one family for one tenant
// that carry a target date. The trigger calculator decides which of them are
// actually due.
func (s *EntityStore) ListRemindable(ctx context.Context, tenantID string, entityType models.EntityType) ([]models.Entity, error) {
	meta, ok := entityTable[entityType]
	if !ok {
		return nil, fmt.Errorf("entity type %q has no reminder table", entityType)
	}

	query := fmt.Sprintf(
		`SELECT id, name, status, owner, owner_email, owner2, owner2_email,
			department, reminder_policy, reminder_days, %s
		FROM %s
		WHERE tenant_id = $1 AND status = $2 AND %s IS NOT NULL
		ORDER BY id`,
		meta.targetDate, meta.table, meta.targetDate,
	)

	rows, err := s.db.QueryContext(ctx, query, tenantID, models.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		e := models.Entity{TenantID: tenantID, Type: entityType}
		var (
			owner2, owner2Email, department, policy sql.NullString
			reminderDays                            sql.NullInt64
			targetDate                              sql.NullTime
		)
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Status, &e.Owner, &e.OwnerEmail,
			&owner2, &owner2Email, &department, &policy, &reminderDays, &targetDate,
		); err != nil {
			return nil, err
		}
		e.Owner2 = owner2.String
		e.Owner2Email = owner2Email.String
		if department.Valid {
			e.Department = department.String
		}
		// Families without an explicit policy default to a single reminder.
		e.ReminderPolicy = models.PolicyOneTime
		if policy.Valid && policy.String != "" {
			e.ReminderPolicy = models.ReminderPolicy(policy.String)
		}
		e.ReminderDays = int(reminderDays.Int64)
		if targetDate.Valid {
			t := targetDate.Time
			e.TargetDate = &t
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
