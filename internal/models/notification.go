// internal/models/notification.go
package models

import "time"

// InAppNotification is a tenant- and recipient-scoped feed entry. One record
// per recipient per event; Roles carries every role the recipient qualified
// under so the feed can explain why it was delivered.
type InAppNotification struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenantId"`
	RecipientID    string         `json:"recipientId,omitempty"`
	RecipientEmail string         `json:"recipientEmail"`
	EntityID       string         `json:"entityId"`
	EntityType     EntityType     `json:"entityType"`
	Event          LifecycleEvent `json:"event"`
	Roles          []Role         `json:"roles"`
	Message        string         `json:"message"`
	Read           bool           `json:"read"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// DeliveryKey is the composite idempotency key for one delivery attempt.
// TriggerRef is the trigger date (YYYY-MM-DD) for reminders, or the event id
// for lifecycle events. RecipientRef is the identity id when known, otherwise
// the normalized email.
type DeliveryKey struct {
	TenantID     string  `json:"tenantId"`
	EntityID     string  `json:"entityId"`
	TriggerRef   string  `json:"triggerRef"`
	RecipientRef string  `json:"recipientRef"`
	Role         Role    `json:"role"`
	Channel      Channel `json:"channel"`
}

// String renders the key for logging and for the Redis claim cache.
func (k DeliveryKey) String() string {
	return k.TenantID + "|" + k.EntityID + "|" + k.TriggerRef + "|" +
		k.RecipientRef + "|" + string(k.Role) + "|" + string(k.Channel)
}

// DeliveryLogEntry is the immutable claim record. Entries are only inserted;
// a failed send removes its claim so the next sweep retries.
type DeliveryLogEntry struct {
	Key       DeliveryKey `json:"key"`
	CreatedAt time.Time   `json:"createdAt"`
}
