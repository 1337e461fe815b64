package logging

import (
	"strings"
	"sync"
)

const redactedValue = "[REDACTED]"

// Redactor replaces the values of sensitive field keys.
// Keys match case-insensitively and exactly; substring matching would catch
// fields such as "token_expires_at".
type Redactor struct {
	mu            sync.RWMutex
	sensitiveKeys map[string]bool
}

// NewRedactor creates a new Redactor with default sensitive keys.
func NewRedactor() *Redactor {
	return &Redactor{
		sensitiveKeys: map[string]bool{
			// Credentials
			"password":      true,
			"new_password":  true,
			"credentials":   true,
			"authorization": true,

			// Sessions
			"token":         true,
			"session_token": true,
			"bearer":        true,

			// Proof material
			"salt":             true,
			"salted_password":  true,
			"client_key":       true,
			"stored_key":       true,
			"client_signature": true,
			"client_proof":     true,
			"proof":            true,
			"clientproof":      true,
			"storedkey":        true,

			// Transport
			"private_key": true,
			"tls_key":     true,
		},
	}
}

// AddSensitiveKey adds a custom key to the redaction list.
func (r *Redactor) AddSensitiveKey(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sensitiveKeys[strings.ToLower(key)] = true
}

// RedactFields returns a copy of fields with sensitive values replaced.
// Nested maps are redacted recursively.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	redacted := make(map[string]any, len(fields))
	for k, v := range fields {
		switch {
		case r.isSensitiveKey(k):
			redacted[k] = redactedValue
		case isMap(v):
			redacted[k] = r.RedactFields(v.(map[string]any))
		default:
			redacted[k] = v
		}
	}

	return redacted
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func (r *Redactor) isSensitiveKey(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sensitiveKeys[strings.ToLower(key)]
}
