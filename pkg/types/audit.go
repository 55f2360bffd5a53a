package types

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records a single staff-driven status transition.
type AuditEntry struct {
	StaffID uuid.UUID `json:"staff_id"`
	Role    string    `json:"role"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

// AuditTrail is the append-only transition history stored on an order.
type AuditTrail []AuditEntry

// Append returns the trail with a new entry added.
func (t AuditTrail) Append(entry AuditEntry) AuditTrail {
	return append(t, entry)
}
