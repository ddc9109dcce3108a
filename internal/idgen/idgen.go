// Package idgen generates time-ordered identifiers for training runs,
// artifacts and requests.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a UUIDv7 string. IDs created later sort after earlier ones.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WithPrefix returns prefix followed by a UUIDv7 without dashes
// (e.g. "run_0190f3c2...").
func WithPrefix(prefix string) string {
	return prefix + strings.ReplaceAll(New(), "-", "")
}

// RunID identifies one training run.
func RunID() string { return WithPrefix("run_") }

// RequestID identifies one scoring request.
func RequestID() string { return WithPrefix("req_") }
