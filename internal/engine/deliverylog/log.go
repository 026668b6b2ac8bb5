// internal/engine/deliverylog/log.go

// Package deliverylog is the idempotency gate: an append-only Postgres table
// with a unique index over the composite delivery key. Successful insert is
// the claim; a unique violation means an earlier run already delivered.
// The uniqueness constraint is the engine's only synchronization primitive,
// so overlapping sweeps cannot double-deliver.
package deliverylog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	apperrors "subtrack-notifier/internal/common/errors"
	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/common/metrics"
	"subtrack-notifier/internal/models"
)

// uniqueViolation is the Postgres error code raised by the delivery_log
// unique index.
const uniqueViolation = "23505"

type Log struct {
	db     *sql.DB
	cache  *ClaimCache // optional fast path, may be nil
	logger logger.Logger
}

func New(db *sql.DB, cache *ClaimCache, log logger.Logger) *Log {
	return &Log{
		db:     db,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "delivery-log"}),
	}
}

// Claim attempts to insert the key. Returns true when this run owns the
// delivery, false when the key was already claimed. Any persistence error
// other than the unique violation is returned; the caller treats it as a
// failure of this one recipient's delivery, not of the sweep.
func (l *Log) Claim(ctx context.Context, key models.DeliveryKey) (bool, error) {
	if l.cache != nil && l.cache.Seen(ctx, key) {
		metrics.ClaimsDuplicate.Inc()
		return false, nil
	}

	const query = `INSERT INTO delivery_log
		(tenant_id, entity_id, trigger_ref, recipient_ref, role, channel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := l.db.ExecContext(ctx, query,
		key.TenantID, key.EntityID, key.TriggerRef, key.RecipientRef,
		string(key.Role), string(key.Channel), time.Now().UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			metrics.ClaimsDuplicate.Inc()
			l.logger.WithError(apperrors.NewClaimConflictError(key.String())).Debug(
				"claim held by an earlier run", nil)
			if l.cache != nil {
				l.cache.Mark(ctx, key)
			}
			return false, nil
		}
		return false, apperrors.NewClaimFailedError(err)
	}

	metrics.ClaimsGranted.Inc()
	if l.cache != nil {
		l.cache.Mark(ctx, key)
	}
	return true, nil
}

// Release deletes a claim after a failed send so the next sweep retries.
// Claims are never retried within the same invocation.
func (l *Log) Release(ctx context.Context, key models.DeliveryKey) error {
	const query = `DELETE FROM delivery_log
		WHERE tenant_id = $1 AND entity_id = $2 AND trigger_ref = $3
			AND recipient_ref = $4 AND role = $5 AND channel = $6`

	if l.cache != nil {
		l.cache.Forget(ctx, key)
	}

	_, err := l.db.ExecContext(ctx, query,
		key.TenantID, key.EntityID, key.TriggerRef, key.RecipientRef,
		string(key.Role), string(key.Channel),
	)
	if err != nil {
		l.logger.Error("claim release failed", map[string]interface{}{
			"key":   key.String(),
			"error": err.Error(),
		})
		return apperrors.NewClaimReleaseFailedError(err)
	}
	return nil
}
