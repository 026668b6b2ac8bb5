// internal/engine/aggregate/aggregator.go

// Package aggregate builds the deduplicated recipient set for one lifecycle
// event from the recipient matrix and the directory resolver.
package aggregate

import (
	"context"

	apperrors "subtrack-notifier/internal/common/errors"
	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/engine/directory"
	"subtrack-notifier/internal/engine/matrix"
	"subtrack-notifier/internal/models"
)

// resolutionOrder fixes recipient insertion order: admins, owner, owner2,
// department heads. Stable but not a correctness requirement.
var resolutionOrder = []models.Role{
	models.RoleAdmin, models.RoleOwner, models.RoleOwner2, models.RoleDeptHead,
}

type Aggregator struct {
	resolver *directory.Resolver
	logger   logger.Logger
}

func New(resolver *directory.Resolver, log logger.Logger) *Aggregator {
	return &Aggregator{
		resolver: resolver,
		logger:   log.WithFields(map[string]interface{}{"component": "aggregator"}),
	}
}

// Aggregate resolves every role the matrix enables for (entity.Type, event)
// and merges identities that resolve under several roles into a single
// recipient. Merging keys on the identity id when present, otherwise on the
// normalized email, so no two returned recipients share either. A role that
// cannot be resolved is simply absent; it never aborts the others.
func (a *Aggregator) Aggregate(ctx context.Context, entity *models.Entity, event models.LifecycleEvent) []*models.Recipient {
	row, ok := matrix.Lookup(entity.Type, event)
	if !ok {
		// The dispatcher filters against the matrix before aggregating and
		// Validate() runs at startup, so this indicates a caller bug.
		err := apperrors.NewMatrixRowMissingError(string(entity.Type), string(event))
		a.logger.WithError(err).Error("no matrix row for event", map[string]interface{}{
			"tenantId": entity.TenantID,
			"entityId": entity.ID,
		})
		return nil
	}

	byID := make(map[string]*models.Recipient)
	byEmail := make(map[string]*models.Recipient)
	var order []*models.Recipient

	// find matches an incoming identity against the running set: by id when
	// the id is known, falling back to the normalized email either way, so an
	// id-bearing resolution and an email-only fallback for the same person
	// collapse into one recipient.
	find := func(id, email string) *models.Recipient {
		if id != "" {
			if r, ok := byID[id]; ok {
				return r
			}
		}
		if r, ok := byEmail[models.NormalizeEmail(email)]; ok {
			return r
		}
		return nil
	}

	add := func(identity *models.Identity, role models.Role, flags matrix.Flags, department string) {
		if identity == nil || identity.Email == "" {
			return
		}

		existing := find(identity.ID, identity.Email)
		if existing == nil {
			existing = &models.Recipient{
				ID:         identity.ID,
				Email:      identity.Email,
				Name:       identity.Name,
				Roles:      models.NewRoleSet(),
				InAppRoles: models.NewRoleSet(),
				EmailRoles: models.NewRoleSet(),
			}
			order = append(order, existing)
		}

		existing.Roles.Add(role)
		existing.SendInApp = existing.SendInApp || flags.InApp
		existing.SendEmail = existing.SendEmail || flags.Email
		if flags.InApp {
			existing.InAppRoles.Add(role)
		}
		if flags.Email {
			existing.EmailRoles.Add(role)
		}
		if department != "" && !containsString(existing.Departments, department) {
			existing.Departments = append(existing.Departments, department)
		}
		// An id-bearing resolution upgrades an email-only entry in place.
		if existing.ID == "" {
			existing.ID = identity.ID
		}
		if existing.Name == "" {
			existing.Name = identity.Name
		}

		if existing.ID != "" {
			byID[existing.ID] = existing
		}
		byEmail[models.NormalizeEmail(existing.Email)] = existing
		byEmail[models.NormalizeEmail(identity.Email)] = existing
	}

	for _, role := range resolutionOrder {
		flags, present := row[role]
		if !present || (!flags.InApp && !flags.Email) {
			continue
		}

		switch role {
		case models.RoleAdmin:
			for _, admin := range a.resolver.ResolveAdmins(ctx, entity.TenantID) {
				identity := admin
				add(&identity, role, flags, "")
			}

		case models.RoleOwner:
			identity := a.resolver.ResolveDeliveryIdentity(ctx, entity.TenantID, entity.Owner, entity.OwnerEmail)
			if identity == nil && entity.Owner != "" {
				a.resolutionMiss(entity, role, entity.Owner)
			}
			add(identity, role, flags, "")

		case models.RoleOwner2:
			identity := a.resolver.ResolveDeliveryIdentity(ctx, entity.TenantID, entity.Owner2, entity.Owner2Email)
			if identity == nil && entity.Owner2 != "" {
				a.resolutionMiss(entity, role, entity.Owner2)
			}
			add(identity, role, flags, "")

		case models.RoleDeptHead:
			for _, dept := range entity.Departments {
				identity := a.resolver.ResolveDepartmentHead(ctx, entity.TenantID, dept)
				if identity == nil {
					a.resolutionMiss(entity, role, dept)
				}
				add(identity, role, flags, dept)
			}
		}
	}

	return order
}

// resolutionMiss records a role that produced no deliverable identity. The
// role is simply absent from the recipient set; the miss is visible in the
// logs for operators chasing "why was nobody notified".
func (a *Aggregator) resolutionMiss(entity *models.Entity, role models.Role, rawValue string) {
	a.logger.WithError(apperrors.NewResolutionMissError(string(role), rawValue)).Debug(
		"role resolved to no deliverable identity",
		map[string]interface{}{
			"tenantId": entity.TenantID,
			"entityId": entity.ID,
		})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
