// pkg/registry/schema.go
package registry

// TemplateRegistry is the on-disk email template catalog. Each template is
// keyed by (entity type, event, role); the wording differs per role because
// the business reason for the email differs.
type TemplateRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Templates   []Template `json:"templates"`
}

type Template struct {
	EntityType string `json:"entityType"`
	Event      string `json:"event"`
	Role       string `json:"role"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// registrySchema validates registry files at load time so a malformed
// registry fails startup instead of producing empty emails.
const registrySchema = `{
	"type": "object",
	"required": ["version", "templates"],
	"properties": {
		"version": {"type": "string"},
		"lastUpdated": {"type": "string"},
		"templates": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["entityType", "event", "role", "subject", "body"],
				"properties": {
					"entityType": {"type": "string", "enum": ["subscription", "compliance", "license", "payment_method"]},
					"event": {"type": "string"},
					"role": {"type": "string", "enum": ["admin", "owner", "owner2", "dept_head"]},
					"subject": {"type": "string", "minLength": 1},
					"body": {"type": "string", "minLength": 1}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`
