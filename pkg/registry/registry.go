// pkg/registry/registry.go

// Package registry loads and serves the email template catalog. Templates
// are keyed by (entity type, event, role); a compiled-in default set covers
// every email-enabled matrix cell so the engine works with no registry file
// configured.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "subtrack-notifier/internal/common/errors"
)

var placeholderPattern = regexp.MustCompile(`\{\{[^}]*\}\}`)

// Registry is the in-memory template index.
type Registry struct {
	byKey map[string]Template
}

func key(entityType, event, role string) string {
	return entityType + "|" + event + "|" + role
}

// LoadRegistry reads and validates a registry file. An empty path returns the
// compiled-in defaults.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return Defaults(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template registry %s: %w", path, err)
	}

	schemaLoader := gojsonschema.NewStringLoader(registrySchema)
	docLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, apperrors.NewRegistryInvalidError(fmt.Sprintf("%s: %s", path, err.Error()))
	}
	if !result.Valid() {
		var details []string
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, apperrors.NewRegistryInvalidError(fmt.Sprintf("%s: %s", path, strings.Join(details, "; ")))
	}

	var reg TemplateRegistry
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, apperrors.NewRegistryInvalidError(fmt.Sprintf("%s: %s", path, err.Error()))
	}

	r := Defaults()
	for _, t := range reg.Templates {
		r.byKey[key(t.EntityType, t.Event, t.Role)] = t
	}
	return r, nil
}

// Lookup returns the template for the given cell, or false when no template
// exists for it.
func (r *Registry) Lookup(entityType, event, role string) (Template, bool) {
	t, ok := r.byKey[key(entityType, event, role)]
	return t, ok
}

// Render substitutes {{placeholder}} tokens in tmpl from data. Placeholders
// with no value are stripped so a missing field never leaks braces into a
// customer-facing email.
func Render(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	return placeholderPattern.ReplaceAllString(result, "")
}

// Defaults returns the compiled-in template set. Every (entity type, event,
// role) cell with email enabled in the recipient matrix has an entry here.
func Defaults() *Registry {
	r := &Registry{byKey: make(map[string]Template)}
	for _, t := range defaultTemplates {
		r.byKey[key(t.EntityType, t.Event, t.Role)] = t
	}
	return r
}

var defaultTemplates = []Template{
	// subscription / created
	{
		EntityType: "subscription", Event: "created", Role: "admin",
		Subject: "New subscription: {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>A new subscription <strong>{{entityName}}</strong> was created in your organization.</p><p>You are receiving this as an administrator.</p>",
	},
	{
		EntityType: "subscription", Event: "created", Role: "owner",
		Subject: "You now own subscription {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The subscription <strong>{{entityName}}</strong> was created and you are its owner.</p>",
	},
	{
		EntityType: "subscription", Event: "created", Role: "dept_head",
		Subject: "New subscription in your department: {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The subscription <strong>{{entityName}}</strong> was created.</p><p>You are receiving this as the department head for {{departments}}.</p>",
	},

	// subscription / owner_changed
	{
		EntityType: "subscription", Event: "owner_changed", Role: "owner",
		Subject: "You are now the owner of {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>Ownership of the subscription <strong>{{entityName}}</strong> was transferred to you.</p>",
	},

	// subscription / price_changed
	{
		EntityType: "subscription", Event: "price_changed", Role: "admin",
		Subject: "Price change on {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The price of the subscription <strong>{{entityName}}</strong> changed to {{amount}}.</p><p>You are receiving this as an administrator.</p>",
	},
	{
		EntityType: "subscription", Event: "price_changed", Role: "owner",
		Subject: "Price change on your subscription {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The price of your subscription <strong>{{entityName}}</strong> changed to {{amount}}.</p>",
	},
	{
		EntityType: "subscription", Event: "price_changed", Role: "dept_head",
		Subject: "Price change in your department: {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The price of the subscription <strong>{{entityName}}</strong> changed to {{amount}}.</p><p>You are receiving this as the department head for {{departments}}.</p>",
	},

	// subscription / cancelled
	{
		EntityType: "subscription", Event: "cancelled", Role: "admin",
		Subject: "Subscription cancelled: {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The subscription <strong>{{entityName}}</strong> was cancelled.</p><p>You are receiving this as an administrator.</p>",
	},
	{
		EntityType: "subscription", Event: "cancelled", Role: "owner",
		Subject: "Your subscription {{entityName}} was cancelled",
		Body:    "<p>Hello {{recipientName}},</p><p>Your subscription <strong>{{entityName}}</strong> was cancelled.</p>",
	},
	{
		EntityType: "subscription", Event: "cancelled", Role: "dept_head",
		Subject: "Subscription cancelled in your department: {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The subscription <strong>{{entityName}}</strong> was cancelled.</p><p>You are receiving this as the department head for {{departments}}.</p>",
	},

	// compliance / created
	{
		EntityType: "compliance", Event: "created", Role: "owner",
		Subject: "Compliance filing assigned to you: {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The compliance filing <strong>{{entityName}}</strong> was created and you are responsible for it.</p>",
	},

	// compliance / owner_changed
	{
		EntityType: "compliance", Event: "owner_changed", Role: "owner",
		Subject: "Compliance filing reassigned to you: {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The compliance filing <strong>{{entityName}}</strong> was reassigned to you.</p>",
	},

	// compliance / submitted
	{
		EntityType: "compliance", Event: "submitted", Role: "owner2",
		Subject: "Compliance filing submitted: {{entityName}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The compliance filing <strong>{{entityName}}</strong> was submitted.</p><p>You are receiving this as the secondary contact.</p>",
	},

	// compliance / reminder
	{
		EntityType: "compliance", Event: "reminder", Role: "owner",
		Subject: "Reminder: {{entityName}} is due on {{targetDate}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The compliance filing <strong>{{entityName}}</strong> you are responsible for is due on {{targetDate}}.</p>",
	},
	{
		EntityType: "compliance", Event: "reminder", Role: "owner2",
		Subject: "Reminder: {{entityName}} is due on {{targetDate}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The compliance filing <strong>{{entityName}}</strong> is due on {{targetDate}}.</p><p>You are receiving this as the secondary contact.</p>",
	},
	{
		EntityType: "compliance", Event: "reminder", Role: "dept_head",
		Subject: "Reminder: {{entityName}} is due on {{targetDate}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The compliance filing <strong>{{entityName}}</strong> is due on {{targetDate}}.</p><p>You are receiving this as the department head for {{departments}}.</p>",
	},

	// license / reminder
	{
		EntityType: "license", Event: "reminder", Role: "owner",
		Subject: "License expiring: {{entityName}} on {{targetDate}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The license <strong>{{entityName}}</strong> you are responsible for expires on {{targetDate}}.</p>",
	},
	{
		EntityType: "license", Event: "reminder", Role: "owner2",
		Subject: "License expiring: {{entityName}} on {{targetDate}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The license <strong>{{entityName}}</strong> expires on {{targetDate}}.</p><p>You are receiving this as the secondary contact.</p>",
	},
	{
		EntityType: "license", Event: "reminder", Role: "dept_head",
		Subject: "License expiring: {{entityName}} on {{targetDate}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The license <strong>{{entityName}}</strong> expires on {{targetDate}}.</p><p>You are receiving this as the department head for {{departments}}.</p>",
	},

	// payment_method / expiring
	{
		EntityType: "payment_method", Event: "expiring", Role: "owner",
		Subject: "Payment method expiring: {{entityName}} on {{targetDate}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The payment method <strong>{{entityName}}</strong> on your subscription expires on {{targetDate}}. Please update it before the expiry date.</p>",
	},
	{
		EntityType: "payment_method", Event: "expiring", Role: "owner2",
		Subject: "Payment method expiring: {{entityName}} on {{targetDate}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The payment method <strong>{{entityName}}</strong> expires on {{targetDate}}.</p><p>You are receiving this as the secondary contact.</p>",
	},
	{
		EntityType: "payment_method", Event: "expiring", Role: "dept_head",
		Subject: "Payment method expiring: {{entityName}} on {{targetDate}}",
		Body:    "<p>Hello {{recipientName}},</p><p>The payment method <strong>{{entityName}}</strong> expires on {{targetDate}}.</p><p>You are receiving this as the department head for {{departments}}.</p>",
	},
}
