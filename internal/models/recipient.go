// internal/models/recipient.go
package models

import "strings"

// Role is the capacity under which a recipient qualifies for an event.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOwner    Role = "owner"
	RoleOwner2   Role = "owner2"
	RoleDeptHead Role = "dept_head"
)

// rolePrecedence orders roles for PrimaryRole: dept_head > owner > owner2 > admin.
var rolePrecedence = []Role{RoleDeptHead, RoleOwner, RoleOwner2, RoleAdmin}

// Channel is a delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
)

// RoleSet is a small set of roles with precedence-ordered iteration.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s RoleSet) Add(r Role) {
	s[r] = struct{}{}
}

func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Union adds every role of other into s.
func (s RoleSet) Union(other RoleSet) {
	for r := range other {
		s[r] = struct{}{}
	}
}

// List returns the roles in precedence order.
func (s RoleSet) List() []Role {
	out := make([]Role, 0, len(s))
	for _, r := range rolePrecedence {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Recipient is the deduplicated aggregation unit for one event. A single
// identity resolved under several roles appears once, with the union of its
// roles and channel flags. EmailRoles keeps the per-role email obligation:
// one independently worded email per role, even to the same address.
type Recipient struct {
	ID          string   `json:"id,omitempty"` // identity id, empty when only an email fallback resolved
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	Roles       RoleSet  `json:"roles"`
	SendInApp   bool     `json:"sendInApp"`
	SendEmail   bool     `json:"sendEmail"`
	InAppRoles  RoleSet  `json:"inAppRoles"`
	EmailRoles  RoleSet  `json:"emailRoles"`
	Departments []string `json:"departments,omitempty"` // dept names this recipient heads, for wording
}

// PrimaryRole picks the single role label used for storage when one must be
// chosen: dept_head > owner > owner2 > admin.
func (r *Recipient) PrimaryRole() Role {
	for _, role := range rolePrecedence {
		if r.Roles.Has(role) {
			return role
		}
	}
	return ""
}

// MergeKey is the identity the aggregator dedupes on: the id when present,
// otherwise the normalized email.
func (r *Recipient) MergeKey() string {
	if r.ID != "" {
		return "id:" + r.ID
	}
	return "email:" + NormalizeEmail(r.Email)
}

// NormalizeEmail lower-cases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
