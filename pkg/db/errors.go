package db

import "strings"

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When a constraintName is provided, the helper also
// looks for the constraint text in the error message. Matches both the
// Postgres and SQLite (test driver) phrasings.
func IsUniqueViolation(err error, constraintName ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, name := range constraintName {
		if name != "" && strings.Contains(msg, name) {
			return true
		}
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
