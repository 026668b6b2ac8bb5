// internal/models/entity.go
package models

import "time"

// EntityType identifies a tracked business record family.
type EntityType string

const (
	EntitySubscription  EntityType = "subscription"
	EntityCompliance    EntityType = "compliance"
	EntityLicense       EntityType = "license"
	EntityPaymentMethod EntityType = "payment_method"
)

// LifecycleEvent classifies a change to an entity or a reminder firing.
type LifecycleEvent string

const (
	EventCreated         LifecycleEvent = "created"
	EventOwnerChanged    LifecycleEvent = "owner_changed"
	EventPriceChanged    LifecycleEvent = "price_changed"
	EventQuantityChanged LifecycleEvent = "quantity_changed"
	EventOtherFields     LifecycleEvent = "other_fields"
	EventCancelled       LifecycleEvent = "cancelled"
	EventDeleted         LifecycleEvent = "deleted"
	EventSubmitted       LifecycleEvent = "submitted"
	EventReminder        LifecycleEvent = "reminder"
	EventExpiring        LifecycleEvent = "expiring"
)

// ChangeKind is the coarse mutation reported by the CRUD layer.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeCancel ChangeKind = "cancel"
	ChangeDelete ChangeKind = "delete"
)

// ReminderPolicy controls how trigger dates are derived from a target date.
type ReminderPolicy string

const (
	PolicyOneTime      ReminderPolicy = "One time"
	PolicyTwoTimes     ReminderPolicy = "Two times"
	PolicyUntilRenewal ReminderPolicy = "Until Renewal"
)

// Entity is a decrypted snapshot of a tracked record as supplied by the CRUD
// layer. Department holds the raw stored value (string, array, JSON-encoded
// string, or pipe-delimited string); the dispatcher normalizes it into
// Departments before any downstream component reads it.
type Entity struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenantId"`
	Type           EntityType     `json:"type"`
	Name           string         `json:"name"` // service / filing / license display name
	Status         string         `json:"status"`
	Owner          string         `json:"owner"`      // raw reference: name or email
	OwnerEmail     string         `json:"ownerEmail"` // explicit delivery address, may be empty
	Owner2         string         `json:"owner2,omitempty"`
	Owner2Email    string         `json:"owner2Email,omitempty"`
	Department     interface{}    `json:"department,omitempty"`
	Departments    []string       `json:"-"` // canonical set, filled by the dispatcher
	Amount         float64        `json:"amount,omitempty"`
	Quantity       int            `json:"quantity,omitempty"`
	TargetDate     *time.Time     `json:"targetDate,omitempty"` // renewal / due / expiry date
	ReminderPolicy ReminderPolicy `json:"reminderPolicy,omitempty"`
	ReminderDays   int            `json:"reminderDays,omitempty"`
}

// Entity statuses the delta detector cares about.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusSubmitted = "submitted"
)
