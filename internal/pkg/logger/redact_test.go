package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactValue(t *testing.T) {
	tests := []struct {
		key, val, want string
	}{
		{"admin_token", "super-secret", "[redacted]"},
		{"db_password", "hunter2", "[redacted]"},
		{"email", "ada.lovelace@example.com", "ad***@example.com"},
		{"subscriber", "bo@example.org", "***@example.org"},
		{"mobile", "+1 555 010 0100", "[redacted]"},
		{"err", "duplicate key for ada@example.com", "duplicate key for ad***@example.com"},
		{"count", "42", "42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, redactValue(tt.key, tt.val), tt.key)
	}
}
