// internal/engine/directory/resolver.go

// Package directory resolves human-entered owner and department-head
// references into validated delivery identities.
package directory

import (
	"context"
	"strings"

	"github.com/asaskevich/govalidator"

	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/models"
)

// Store is the tenant-scoped directory lookup surface. Implementations live
// in internal/engine/store.
type Store interface {
	ListAdmins(ctx context.Context, tenantID string) ([]models.User, error)
	FindUserByEmail(ctx context.Context, tenantID, email string) (*models.User, error)
	FindUserByName(ctx context.Context, tenantID, name string) (*models.User, error)
	FindEmployee(ctx context.Context, tenantID, nameOrEmail string) (*models.Employee, error)
	GetDepartment(ctx context.Context, tenantID, name string) (*models.Department, error)
}

// Resolver turns raw owner / department-head strings into Identity values.
// Resolution is side-effect-free and never fails hard: absence is a valid
// outcome, and store errors degrade to absence with a log line.
type Resolver struct {
	store  Store
	logger logger.Logger
}

func NewResolver(store Store, log logger.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "directory-resolver"}),
	}
}

// IsEmail reports whether s has a strict email shape.
func IsEmail(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && govalidator.IsEmail(s)
}

// ResolveDeliveryIdentity resolves rawValue (a name or an email) for one
// tenant. explicitEmail is the entity's own delivery address field; when it
// is a valid email that differs from the directory's answer, the explicit
// field wins because it is the most recent known-correct address. The
// mismatch is logged, never fatal. Returns nil when no valid email can be
// produced.
func (r *Resolver) ResolveDeliveryIdentity(ctx context.Context, tenantID, rawValue, explicitEmail string) *models.Identity {
	raw := strings.TrimSpace(rawValue)
	if raw == "" && !IsEmail(explicitEmail) {
		return nil
	}

	var email, name string

	if IsEmail(raw) {
		email = raw
	} else if raw != "" {
		emp, err := r.store.FindEmployee(ctx, tenantID, raw)
		if err != nil {
			r.logger.Warn("employee lookup failed", map[string]interface{}{
				"tenantId": tenantID,
				"value":    raw,
				"error":    err.Error(),
			})
		} else if emp != nil && IsEmail(emp.Email) {
			email = emp.Email
			name = emp.Name
		}
	}

	// Attach the login identity: an email match is preferred over a display
	// name match.
	var user *models.User
	if email != "" {
		u, err := r.store.FindUserByEmail(ctx, tenantID, email)
		if err != nil {
			r.logger.Warn("user lookup by email failed", map[string]interface{}{
				"tenantId": tenantID,
				"error":    err.Error(),
			})
		} else {
			user = u
		}
	}
	if user == nil && raw != "" && !IsEmail(raw) {
		u, err := r.store.FindUserByName(ctx, tenantID, raw)
		if err != nil {
			r.logger.Warn("user lookup by name failed", map[string]interface{}{
				"tenantId": tenantID,
				"error":    err.Error(),
			})
		} else {
			user = u
		}
	}

	id := ""
	if user != nil {
		id = user.ID
		if name == "" {
			name = user.Name
		}
		if email == "" && IsEmail(user.Email) {
			email = user.Email
		}
	}

	if IsEmail(explicitEmail) {
		explicit := strings.TrimSpace(explicitEmail)
		if email != "" && !strings.EqualFold(email, explicit) {
			r.logger.Warn("explicit delivery email differs from directory", map[string]interface{}{
				"tenantId":       tenantID,
				"value":          raw,
				"directoryEmail": email,
				"explicitEmail":  explicit,
			})
		}
		email = explicit
	}

	if !IsEmail(email) {
		return nil
	}
	if name == "" {
		name = raw
	}

	return &models.Identity{ID: id, Email: email, Name: name}
}

// ResolveDepartmentHead resolves the head of one department by name. Missing
// departments or heads degrade to nil.
func (r *Resolver) ResolveDepartmentHead(ctx context.Context, tenantID, departmentName string) *models.Identity {
	dept, err := r.store.GetDepartment(ctx, tenantID, departmentName)
	if err != nil {
		r.logger.Warn("department lookup failed", map[string]interface{}{
			"tenantId":   tenantID,
			"department": departmentName,
			"error":      err.Error(),
		})
		return nil
	}
	if dept == nil || strings.TrimSpace(dept.Head) == "" {
		return nil
	}
	return r.ResolveDeliveryIdentity(ctx, tenantID, dept.Head, "")
}

// ResolveAdmins returns one identity per tenant admin with a valid email.
func (r *Resolver) ResolveAdmins(ctx context.Context, tenantID string) []models.Identity {
	admins, err := r.store.ListAdmins(ctx, tenantID)
	if err != nil {
		r.logger.Warn("admin list failed", map[string]interface{}{
			"tenantId": tenantID,
			"error":    err.Error(),
		})
		return nil
	}

	out := make([]models.Identity, 0, len(admins))
	for _, admin := range admins {
		if !IsEmail(admin.Email) {
			continue
		}
		out = append(out, models.Identity{ID: admin.ID, Email: admin.Email, Name: admin.Name})
	}
	return out
}
