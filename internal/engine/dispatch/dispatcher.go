// internal/engine/dispatch/dispatcher.go

// Package dispatch orchestrates the notification pipeline. Lifecycle
// dispatches start from an entity mutation and its computed deltas; reminder
// sweeps start from the trigger calculator over all active entities. Both
// paths share aggregation and delivery, and both are continue-on-error: one
// recipient's failure never aborts the rest of the batch.
package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "subtrack-notifier/internal/common/errors"
	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/common/metrics"
	"subtrack-notifier/internal/common/observability"
	"subtrack-notifier/internal/engine/matrix"
	"subtrack-notifier/internal/engine/notifier"
	"subtrack-notifier/internal/engine/reminder"
	"subtrack-notifier/internal/models"
)

const defaultTenantBatch = 100

// Aggregator builds the deduplicated recipient set for one event.
type Aggregator interface {
	Aggregate(ctx context.Context, entity *models.Entity, event models.LifecycleEvent) []*models.Recipient
}

// Deliverer fans one recipient out across its channels.
type Deliverer interface {
	Deliver(ctx context.Context, entity *models.Entity, event models.LifecycleEvent, triggerRef string, rec *models.Recipient) (notifier.Delivery, error)
}

// EntityLister supplies tenants and remindable entities for sweeps.
type EntityLister interface {
	ListTenants(ctx context.Context, afterID string, limit int) ([]string, error)
	ListRemindable(ctx context.Context, tenantID string, entityType models.EntityType) ([]models.Entity, error)
}

// reminderFamilies are the entity types the sweep scans. Subscriptions have
// no reminder row in the matrix; their renewal handling lives in the CRUD
// layer.
var reminderFamilies = []models.EntityType{
	models.EntityCompliance,
	models.EntityLicense,
	models.EntityPaymentMethod,
}

type Dispatcher struct {
	aggregator  Aggregator
	deliverer   Deliverer
	entities    EntityLister
	obs         *observability.Observability // nil when OTel is disabled
	logger      logger.Logger
	tenantBatch int
	now         func() time.Time
}

func New(agg Aggregator, del Deliverer, entities EntityLister, obs *observability.Observability, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		aggregator:  agg,
		deliverer:   del,
		entities:    entities,
		obs:         obs,
		logger:      log,
		tenantBatch: defaultTenantBatch,
		now:         time.Now,
	}
}

// WithTenantBatch overrides the sweep's tenant page size.
func (d *Dispatcher) WithTenantBatch(n int) *Dispatcher {
	if n > 0 {
		d.tenantBatch = n
	}
	return d
}

// OnEntityChange classifies one entity mutation and runs a full notification
// round per resulting event. Each event gets its own trigger reference so an
// owner change and a price change in the same update are claimed and
// delivered independently.
func (d *Dispatcher) OnEntityChange(ctx context.Context, kind models.ChangeKind, newSnap, oldSnap *models.Entity) error {
	if newSnap == nil {
		return apperrors.NewSweepAbortedError("entity change dispatched with nil snapshot")
	}
	if newSnap.TenantID == "" {
		return apperrors.NewSweepAbortedError("entity change dispatched with empty tenant id")
	}

	newSnap.Departments = d.normalizeDepartments(newSnap)
	if oldSnap != nil {
		oldSnap.Departments = d.normalizeDepartments(oldSnap)
	}

	for _, event := range computeEvents(kind, newSnap, oldSnap) {
		// The matrix is the authority on which pairs notify anyone. A pair
		// without a row, like a compliance deletion, is dropped here rather
		// than handed to the aggregator.
		if _, ok := matrix.Lookup(newSnap.Type, event); !ok {
			d.logger.Debug("No matrix row for event, skipping", map[string]interface{}{
				"tenantId":   newSnap.TenantID,
				"entityId":   newSnap.ID,
				"entityType": string(newSnap.Type),
				"event":      string(event),
			})
			continue
		}

		triggerRef := uuid.NewString()
		d.logger.Info("Dispatching lifecycle event", map[string]interface{}{
			"tenantId":   newSnap.TenantID,
			"entityId":   newSnap.ID,
			"entityType": string(newSnap.Type),
			"event":      string(event),
			"triggerRef": triggerRef,
		})
		d.dispatchOne(ctx, newSnap, event, triggerRef)
	}
	return nil
}

// RunReminderSweep scans every tenant's remindable entities and delivers the
// reminders due today, including any triggers missed by skipped runs. The
// delivery log guarantees reruns within the same day are no-ops.
func (d *Dispatcher) RunReminderSweep(ctx context.Context) error {
	start := d.now()
	today := reminder.Date(start.UTC())

	d.logger.Info("Starting reminder sweep", map[string]interface{}{
		"date": reminder.DateString(today),
	})

	afterID := ""
	tenants := 0
	for {
		page, err := d.entities.ListTenants(ctx, afterID, d.tenantBatch)
		if err != nil {
			return apperrors.NewEntityQueryFailedError("", err)
		}
		if len(page) == 0 {
			break
		}
		for _, tenantID := range page {
			d.sweepTenant(ctx, tenantID, today)
			tenants++
		}
		afterID = page[len(page)-1]
	}

	elapsed := d.now().Sub(start)
	metrics.SweepDuration.Observe(elapsed.Seconds())
	d.logger.Info("Reminder sweep finished", map[string]interface{}{
		"tenants":  tenants,
		"duration": elapsed.String(),
	})
	return nil
}

func (d *Dispatcher) sweepTenant(ctx context.Context, tenantID string, today time.Time) {
	for _, entityType := range reminderFamilies {
		event, ok := matrix.ReminderEvent(entityType)
		if !ok {
			continue
		}

		entities, err := d.entities.ListRemindable(ctx, tenantID, entityType)
		if err != nil {
			d.logger.WithError(err).Error("Failed to list remindable entities, skipping", map[string]interface{}{
				"tenantId":   tenantID,
				"entityType": string(entityType),
			})
			continue
		}
		metrics.SweepEntitiesScanned.WithLabelValues(string(entityType)).Add(float64(len(entities)))

		for i := range entities {
			entity := &entities[i]
			entity.Departments = d.normalizeDepartments(entity)

			for _, trigger := range reminder.DueTriggers(entity.TargetDate, entity.ReminderDays, entity.ReminderPolicy, today) {
				d.dispatchOne(ctx, entity, event, reminder.DateString(trigger))
			}
		}
	}
}

// normalizeDepartments canonicalizes the entity's raw department field. A
// non-empty value that decodes to nothing means no department heads will be
// resolved; that is logged, not fatal.
func (d *Dispatcher) normalizeDepartments(entity *models.Entity) []string {
	depts := NormalizeDepartments(entity.Department)
	if raw, ok := entity.Department.(string); ok && strings.TrimSpace(raw) != "" && len(depts) == 0 {
		d.logger.WithError(apperrors.NewMalformedDepartmentError(raw)).Warn(
			"Department field could not be decoded, department heads will not be notified",
			map[string]interface{}{
				"tenantId": entity.TenantID,
				"entityId": entity.ID,
			})
	}
	return depts
}

// dispatchOne runs aggregation and delivery for a single (entity, event,
// trigger) tuple. Delivery failures are logged per recipient and the loop
// continues.
func (d *Dispatcher) dispatchOne(ctx context.Context, entity *models.Entity, event models.LifecycleEvent, triggerRef string) {
	start := d.now()
	recipients := d.aggregator.Aggregate(ctx, entity, event)

	failed := 0
	for _, rec := range recipients {
		if _, err := d.deliverer.Deliver(ctx, entity, event, triggerRef, rec); err != nil {
			failed++
			d.logger.WithError(err).Error("Delivery failed for recipient, continuing", map[string]interface{}{
				"tenantId":   entity.TenantID,
				"entityId":   entity.ID,
				"event":      string(event),
				"triggerRef": triggerRef,
				"recipient":  rec.Email,
			})
		}
	}

	status := "ok"
	if failed > 0 {
		status = "partial_failure"
	}
	if d.obs != nil {
		d.obs.RecordDispatch(ctx, string(event), status)
		d.obs.RecordDispatchDuration(ctx, d.now().Sub(start), string(event))
	}
}
