// internal/engine/notifier/notifier.go

// Package notifier performs the final delivery step: given an aggregated
// recipient and an event, it claims the idempotency key per channel, writes
// the in-app record, and sends one email per qualifying role. Channel
// failures are independent; a failed send releases its claim so the next
// pass retries.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "subtrack-notifier/internal/common/errors"
	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/common/metrics"
	"subtrack-notifier/internal/engine/reminder"
	"subtrack-notifier/internal/models"
	"subtrack-notifier/pkg/registry"
)

// ClaimGate is the idempotency gate. Claim returns false with no error when
// the key is already held.
type ClaimGate interface {
	Claim(ctx context.Context, key models.DeliveryKey) (bool, error)
	Release(ctx context.Context, key models.DeliveryKey) error
}

// InAppStore persists in-app notification records.
type InAppStore interface {
	Insert(ctx context.Context, n *models.InAppNotification) error
}

// AuditSink records delivery outcomes for offline inspection. Implementations
// must not fail the delivery; a sink error is logged and swallowed.
type AuditSink interface {
	Record(ctx context.Context, outcome Outcome)
}

// Outcome is one channel-level delivery result.
type Outcome struct {
	TenantID   string                `json:"tenantId"`
	EntityID   string                `json:"entityId"`
	EntityType models.EntityType     `json:"entityType"`
	Event      models.LifecycleEvent `json:"event"`
	TriggerRef string                `json:"triggerRef"`
	Recipient  string                `json:"recipient"`
	Role       models.Role           `json:"role"`
	Channel    models.Channel        `json:"channel"`
	Status     string                `json:"status"` // sent, skipped, failed
	Error      string                `json:"error,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// Delivery summarizes what happened for one recipient.
type Delivery struct {
	InAppSent    bool
	EmailsSent   int
	Skipped      int // claims already held by an earlier run
	EmailsFailed int
}

type Notifier struct {
	gate      ClaimGate
	inApp     InAppStore
	transport EmailTransport
	templates *registry.Registry
	audit     AuditSink // nil when auditing is disabled
	logger    logger.Logger
}

func New(gate ClaimGate, inApp InAppStore, transport EmailTransport, templates *registry.Registry, audit AuditSink, log logger.Logger) *Notifier {
	return &Notifier{
		gate:      gate,
		inApp:     inApp,
		transport: transport,
		templates: templates,
		audit:     audit,
		logger:    log,
	}
}

// Deliver fans one recipient out across its enabled channels. The in-app
// channel writes one merged record under the recipient's primary role; the
// email channel sends one independently claimed email per qualifying role.
// The first error is returned after all channels have been attempted.
func (n *Notifier) Deliver(ctx context.Context, entity *models.Entity, event models.LifecycleEvent, triggerRef string, rec *models.Recipient) (Delivery, error) {
	var result Delivery
	var firstErr error

	recipientRef := rec.ID
	if recipientRef == "" {
		recipientRef = models.NormalizeEmail(rec.Email)
	}

	if rec.SendInApp {
		if err := n.deliverInApp(ctx, entity, event, triggerRef, recipientRef, rec, &result); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if rec.SendEmail {
		if err := n.deliverEmails(ctx, entity, event, triggerRef, recipientRef, rec, &result); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return result, firstErr
}

func (n *Notifier) deliverInApp(ctx context.Context, entity *models.Entity, event models.LifecycleEvent, triggerRef, recipientRef string, rec *models.Recipient, result *Delivery) error {
	key := models.DeliveryKey{
		TenantID:     entity.TenantID,
		EntityID:     entity.ID,
		TriggerRef:   triggerRef,
		RecipientRef: recipientRef,
		Role:         rec.PrimaryRole(),
		Channel:      models.ChannelInApp,
	}

	granted, err := n.gate.Claim(ctx, key)
	if err != nil {
		n.record(ctx, entity, event, triggerRef, rec.Email, key.Role, models.ChannelInApp, "failed", err)
		metrics.NotificationsFailed.WithLabelValues(string(models.ChannelInApp), errorCode(err)).Inc()
		return err
	}
	if !granted {
		result.Skipped++
		metrics.NotificationsSkipped.WithLabelValues(string(models.ChannelInApp)).Inc()
		n.logger.Debug("In-app delivery already claimed, skipping", map[string]interface{}{
			"key": key.String(),
		})
		return nil
	}

	notification := &models.InAppNotification{
		ID:             uuid.NewString(),
		TenantID:       entity.TenantID,
		RecipientID:    rec.ID,
		RecipientEmail: rec.Email,
		EntityID:       entity.ID,
		EntityType:     entity.Type,
		Event:          event,
		Roles:          rec.Roles.List(),
		Message:        inAppMessage(entity, event),
		Read:           false,
		CreatedAt:      time.Now().UTC(),
	}

	if err := n.inApp.Insert(ctx, notification); err != nil {
		if relErr := n.gate.Release(ctx, key); relErr != nil {
			n.logger.WithError(relErr).Error("Failed to release claim after insert failure", map[string]interface{}{
				"key": key.String(),
			})
		}
		insertErr := apperrors.NewNotificationInsertError(err)
		n.record(ctx, entity, event, triggerRef, rec.Email, key.Role, models.ChannelInApp, "failed", insertErr)
		metrics.NotificationsFailed.WithLabelValues(string(models.ChannelInApp), errorCode(insertErr)).Inc()
		return insertErr
	}

	result.InAppSent = true
	metrics.NotificationsSent.WithLabelValues(string(models.ChannelInApp), string(entity.Type), string(event)).Inc()
	n.record(ctx, entity, event, triggerRef, rec.Email, key.Role, models.ChannelInApp, "sent", nil)
	return nil
}

func (n *Notifier) deliverEmails(ctx context.Context, entity *models.Entity, event models.LifecycleEvent, triggerRef, recipientRef string, rec *models.Recipient, result *Delivery) error {
	if !n.transport.Configured() {
		// Valid degraded state: no claim is burned so a later run with a
		// configured transport delivers the email.
		n.logger.Warn("Email transport not configured, skipping email delivery", map[string]interface{}{
			"tenantId": entity.TenantID,
			"entityId": entity.ID,
			"to":       rec.Email,
		})
		return nil
	}

	var firstErr error
	for _, role := range rec.EmailRoles.List() {
		key := models.DeliveryKey{
			TenantID:     entity.TenantID,
			EntityID:     entity.ID,
			TriggerRef:   triggerRef,
			RecipientRef: recipientRef,
			Role:         role,
			Channel:      models.ChannelEmail,
		}

		granted, err := n.gate.Claim(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			metrics.NotificationsFailed.WithLabelValues(string(models.ChannelEmail), errorCode(err)).Inc()
			n.record(ctx, entity, event, triggerRef, rec.Email, role, models.ChannelEmail, "failed", err)
			continue
		}
		if !granted {
			result.Skipped++
			metrics.NotificationsSkipped.WithLabelValues(string(models.ChannelEmail)).Inc()
			continue
		}

		if err := n.sendOne(ctx, entity, event, role, rec); err != nil {
			if relErr := n.gate.Release(ctx, key); relErr != nil {
				n.logger.WithError(relErr).Error("Failed to release claim after send failure", map[string]interface{}{
					"key": key.String(),
				})
			}
			if firstErr == nil {
				firstErr = err
			}
			result.EmailsFailed++
			metrics.NotificationsFailed.WithLabelValues(string(models.ChannelEmail), errorCode(err)).Inc()
			n.record(ctx, entity, event, triggerRef, rec.Email, role, models.ChannelEmail, "failed", err)
			continue
		}

		result.EmailsSent++
		metrics.NotificationsSent.WithLabelValues(string(models.ChannelEmail), string(entity.Type), string(event)).Inc()
		n.record(ctx, entity, event, triggerRef, rec.Email, role, models.ChannelEmail, "sent", nil)
	}
	return firstErr
}

func (n *Notifier) sendOne(ctx context.Context, entity *models.Entity, event models.LifecycleEvent, role models.Role, rec *models.Recipient) error {
	tmpl, ok := n.templates.Lookup(string(entity.Type), string(event), string(role))
	if !ok {
		return apperrors.NewTemplateNotFoundError(string(entity.Type), string(event), string(role))
	}

	data := templateData(entity, rec)
	subject := registry.Render(tmpl.Subject, data)
	body := registry.Render(tmpl.Body, data)

	return n.transport.Send(ctx, rec.Email, subject, body)
}

func templateData(entity *models.Entity, rec *models.Recipient) map[string]string {
	name := rec.Name
	if name == "" {
		name = rec.Email
	}
	data := map[string]string{
		"entityName":    entity.Name,
		"recipientName": name,
		"departments":   strings.Join(rec.Departments, ", "),
	}
	if entity.Amount != 0 {
		data["amount"] = fmt.Sprintf("%.2f", entity.Amount)
	}
	if entity.Quantity != 0 {
		data["quantity"] = fmt.Sprintf("%d", entity.Quantity)
	}
	if entity.TargetDate != nil {
		data["targetDate"] = reminder.DateString(*entity.TargetDate)
	}
	return data
}

func inAppMessage(entity *models.Entity, event models.LifecycleEvent) string {
	name := entity.Name
	switch event {
	case models.EventCreated:
		return fmt.Sprintf("%s %q was created", entityLabel(entity.Type), name)
	case models.EventOwnerChanged:
		return fmt.Sprintf("Ownership of %s %q changed", entityLabel(entity.Type), name)
	case models.EventPriceChanged:
		return fmt.Sprintf("Price of %s %q changed to %.2f", entityLabel(entity.Type), name, entity.Amount)
	case models.EventQuantityChanged:
		return fmt.Sprintf("Quantity of %s %q changed to %d", entityLabel(entity.Type), name, entity.Quantity)
	case models.EventCancelled:
		return fmt.Sprintf("%s %q was cancelled", entityLabel(entity.Type), name)
	case models.EventDeleted:
		return fmt.Sprintf("%s %q was deleted", entityLabel(entity.Type), name)
	case models.EventSubmitted:
		return fmt.Sprintf("%s %q was submitted", entityLabel(entity.Type), name)
	case models.EventReminder:
		if entity.TargetDate != nil {
			return fmt.Sprintf("%s %q is due on %s", entityLabel(entity.Type), name, reminder.DateString(*entity.TargetDate))
		}
		return fmt.Sprintf("%s %q is due soon", entityLabel(entity.Type), name)
	case models.EventExpiring:
		if entity.TargetDate != nil {
			return fmt.Sprintf("%s %q expires on %s", entityLabel(entity.Type), name, reminder.DateString(*entity.TargetDate))
		}
		return fmt.Sprintf("%s %q is expiring soon", entityLabel(entity.Type), name)
	default:
		return fmt.Sprintf("%s %q changed", entityLabel(entity.Type), name)
	}
}

func entityLabel(t models.EntityType) string {
	switch t {
	case models.EntitySubscription:
		return "Subscription"
	case models.EntityCompliance:
		return "Compliance filing"
	case models.EntityLicense:
		return "License"
	case models.EntityPaymentMethod:
		return "Payment method"
	default:
		return "Entity"
	}
}

func (n *Notifier) record(ctx context.Context, entity *models.Entity, event models.LifecycleEvent, triggerRef, email string, role models.Role, channel models.Channel, status string, err error) {
	if n.audit == nil {
		return
	}
	outcome := Outcome{
		TenantID:   entity.TenantID,
		EntityID:   entity.ID,
		EntityType: entity.Type,
		Event:      event,
		TriggerRef: triggerRef,
		Recipient:  email,
		Role:       role,
		Channel:    channel,
		Status:     status,
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		outcome.Error = err.Error()
	}
	n.audit.Record(ctx, outcome)
}

func errorCode(err error) string {
	if stdErr, ok := err.(*apperrors.StandardError); ok {
		return string(stdErr.Code)
	}
	return "UNKNOWN"
}
