// internal/engine/dispatch/normalize_test.go
package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDepartments(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		expected []string
	}{
		{
			name:     "json encoded string array",
			raw:      `["IT","Finance"]`,
			expected: []string{"IT", "Finance"},
		},
		{
			name:     "string slice",
			raw:      []string{"IT", "Finance"},
			expected: []string{"IT", "Finance"},
		},
		{
			name:     "pipe delimited",
			raw:      "IT|Finance",
			expected: []string{"IT", "Finance"},
		},
		{
			name:     "legacy singular string",
			raw:      "IT",
			expected: []string{"IT"},
		},
		{
			name:     "interface slice from json decode",
			raw:      []interface{}{"IT", "Finance"},
			expected: []string{"IT", "Finance"},
		},
		{
			name:     "duplicates collapse case-insensitively",
			raw:      []string{"IT", "it", " Finance "},
			expected: []string{"IT", "Finance"},
		},
		{
			name:     "unparseable json degrades to empty",
			raw:      `["IT",`,
			expected: nil,
		},
		{
			name:     "empty string",
			raw:      "  ",
			expected: nil,
		},
		{
			name:     "nil",
			raw:      nil,
			expected: nil,
		},
		{
			name:     "unexpected type degrades to empty",
			raw:      42,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDepartments(tt.raw)
			if tt.expected == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}
