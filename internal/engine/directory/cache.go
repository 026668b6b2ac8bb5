// internal/engine/directory/cache.go
package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/models"
)

// CachedStore wraps a Store with a Redis read-through cache for the lookups
// every event repeats: the tenant admin list and department records. Point
// lookups on users and employees pass straight through. Cache failures
// degrade to the underlying store.
type CachedStore struct {
	inner  Store
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		inner:  inner,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "directory-cache"}),
	}
}

func (c *CachedStore) ListAdmins(ctx context.Context, tenantID string) ([]models.User, error) {
	key := "directory:admins:" + tenantID

	if raw, err := c.redis.Get(ctx, key).Result(); err == nil {
		var admins []models.User
		if err := json.Unmarshal([]byte(raw), &admins); err == nil {
			return admins, nil
		}
	} else if err != redis.Nil {
		c.logger.Debug("admin cache read failed", map[string]interface{}{
			"tenantId": tenantID,
			"error":    err.Error(),
		})
	}

	admins, err := c.inner.ListAdmins(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(admins); err == nil {
		if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Debug("admin cache write failed", map[string]interface{}{
				"tenantId": tenantID,
				"error":    err.Error(),
			})
		}
	}
	return admins, nil
}

func (c *CachedStore) GetDepartment(ctx context.Context, tenantID, name string) (*models.Department, error) {
	key := "directory:dept:" + tenantID + ":" + name

	if raw, err := c.redis.Get(ctx, key).Result(); err == nil {
		var dept models.Department
		if err := json.Unmarshal([]byte(raw), &dept); err == nil {
			return &dept, nil
		}
	} else if err != redis.Nil {
		c.logger.Debug("department cache read failed", map[string]interface{}{
			"tenantId": tenantID,
			"error":    err.Error(),
		})
	}

	dept, err := c.inner.GetDepartment(ctx, tenantID, name)
	if err != nil || dept == nil {
		return dept, err
	}

	if raw, err := json.Marshal(dept); err == nil {
		_ = c.redis.Set(ctx, key, raw, c.ttl).Err()
	}
	return dept, nil
}

func (c *CachedStore) FindUserByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	return c.inner.FindUserByEmail(ctx, tenantID, email)
}

func (c *CachedStore) FindUserByName(ctx context.Context, tenantID, name string) (*models.User, error) {
	return c.inner.FindUserByName(ctx, tenantID, name)
}

func (c *CachedStore) FindEmployee(ctx context.Context, tenantID, nameOrEmail string) (*models.Employee, error) {
	return c.inner.FindEmployee(ctx, tenantID, nameOrEmail)
}
