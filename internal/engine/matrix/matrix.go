// internal/engine/matrix/matrix.go

// Package matrix holds the static recipient matrix: one row per
// (entity type, lifecycle event), each row mapping role to channel flags.
// The table is data, not control flow; the aggregator consults it read-only
// and Validate is run at startup so a missing row is a boot error rather
// than a silent no-op.
package matrix

import (
	"fmt"

	"subtrack-notifier/internal/models"
)

// Flags are the channel switches for one role in one row.
type Flags struct {
	InApp bool
	Email bool
}

// Row maps each participating role to its channel flags. A role absent from
// the row receives nothing for that event.
type Row map[models.Role]Flags

// Enabled reports whether the role gets at least one channel.
func (r Row) Enabled(role models.Role) bool {
	f, ok := r[role]
	return ok && (f.InApp || f.Email)
}

var table = map[models.EntityType]map[models.LifecycleEvent]Row{
	models.EntitySubscription: {
		models.EventCreated: {
			models.RoleAdmin:    {InApp: true, Email: true},
			models.RoleOwner:    {InApp: true, Email: true},
			models.RoleDeptHead: {InApp: true, Email: true},
		},
		// Email goes to the new owner only; the aggregator resolves the
		// owner from the post-change snapshot, so the old owner never
		// enters the recipient set.
		models.EventOwnerChanged: {
			models.RoleAdmin: {InApp: true},
			models.RoleOwner: {InApp: true, Email: true},
		},
		models.EventPriceChanged: {
			models.RoleAdmin:    {InApp: true, Email: true},
			models.RoleOwner:    {InApp: true, Email: true},
			models.RoleDeptHead: {InApp: true, Email: true},
		},
		models.EventQuantityChanged: {
			models.RoleAdmin:    {InApp: true},
			models.RoleOwner:    {InApp: true},
			models.RoleDeptHead: {InApp: true},
		},
		models.EventCancelled: {
			models.RoleAdmin:    {InApp: true, Email: true},
			models.RoleOwner:    {InApp: true, Email: true},
			models.RoleDeptHead: {InApp: true, Email: true},
		},
		models.EventDeleted: {
			models.RoleAdmin:    {InApp: true},
			models.RoleOwner:    {InApp: true},
			models.RoleDeptHead: {InApp: true},
		},
	},
	models.EntityCompliance: {
		models.EventCreated: {
			models.RoleAdmin:    {InApp: true},
			models.RoleOwner:    {InApp: true, Email: true},
			models.RoleOwner2:   {InApp: true},
			models.RoleDeptHead: {InApp: true},
		},
		models.EventOwnerChanged: {
			models.RoleAdmin: {InApp: true},
			models.RoleOwner: {InApp: true, Email: true},
		},
		// Field-level edits are visible in the entity history; nobody is
		// notified.
		models.EventOtherFields: {},
		models.EventSubmitted: {
			models.RoleAdmin:  {InApp: true},
			models.RoleOwner:  {InApp: true},
			models.RoleOwner2: {InApp: true, Email: true},
		},
		models.EventReminder: {
			models.RoleOwner:    {InApp: true, Email: true},
			models.RoleOwner2:   {InApp: true, Email: true},
			models.RoleDeptHead: {InApp: true, Email: true},
		},
	},
	models.EntityLicense: {
		models.EventReminder: {
			models.RoleOwner:    {InApp: true, Email: true}, // responsible person
			models.RoleOwner2:   {InApp: true, Email: true}, // secondary person
			models.RoleDeptHead: {InApp: true, Email: true},
		},
	},
	models.EntityPaymentMethod: {
		models.EventExpiring: {
			models.RoleOwner:    {InApp: true, Email: true}, // subscription owner
			models.RoleOwner2:   {InApp: true, Email: true},
			models.RoleDeptHead: {InApp: true, Email: true},
		},
	},
}

// emittable enumerates every (entity type, event) pair the dispatcher can
// produce. Validate checks the table against it exhaustively.
var emittable = map[models.EntityType][]models.LifecycleEvent{
	models.EntitySubscription: {
		models.EventCreated, models.EventOwnerChanged, models.EventPriceChanged,
		models.EventQuantityChanged, models.EventCancelled, models.EventDeleted,
	},
	models.EntityCompliance: {
		models.EventCreated, models.EventOwnerChanged, models.EventOtherFields,
		models.EventSubmitted, models.EventReminder,
	},
	models.EntityLicense: {
		models.EventReminder,
	},
	models.EntityPaymentMethod: {
		models.EventExpiring,
	},
}

// Lookup returns the row for the given pair, or false when the pair is not
// part of the matrix.
func Lookup(entityType models.EntityType, event models.LifecycleEvent) (Row, bool) {
	rows, ok := table[entityType]
	if !ok {
		return nil, false
	}
	row, ok := rows[event]
	return row, ok
}

// ReminderEvent returns the reminder-family event for an entity type, or
// false for types that have no time-based reminders in the matrix.
func ReminderEvent(entityType models.EntityType) (models.LifecycleEvent, bool) {
	switch entityType {
	case models.EntityCompliance, models.EntityLicense:
		return models.EventReminder, true
	case models.EntityPaymentMethod:
		return models.EventExpiring, true
	default:
		return "", false
	}
}

// Validate asserts that every emittable (entity type, event) pair has a row
// and that no row exists for a pair the dispatcher never emits. Run at
// startup.
func Validate() error {
	for entityType, events := range emittable {
		rows, ok := table[entityType]
		if !ok {
			return fmt.Errorf("recipient matrix: no rows for entity type %q", entityType)
		}
		for _, event := range events {
			if _, ok := rows[event]; !ok {
				return fmt.Errorf("recipient matrix: missing row for %s/%s", entityType, event)
			}
		}
		if len(rows) != len(events) {
			for event := range rows {
				if !contains(events, event) {
					return fmt.Errorf("recipient matrix: row %s/%s is never emitted", entityType, event)
				}
			}
		}
	}
	return nil
}

func contains(events []models.LifecycleEvent, event models.LifecycleEvent) bool {
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}
