// internal/models/directory.go
package models

// User is a tenant-scoped login record.
type User struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Employee is a tenant-scoped staff record used to resolve human-entered
// owner references that are not login users.
type Employee struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
}

// Department is a tenant-scoped department with its head reference.
// Head is a raw human-entered value (name or email), resolved the same way
// as owners.
type Department struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Head     string `json:"head,omitempty"`
}

// Identity is a validated delivery target produced by the directory resolver.
// ID is empty when only the email-shape fallback matched.
type Identity struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
