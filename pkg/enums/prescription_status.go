package enums

import "fmt"

// PrescriptionStatus is the review/fulfillment state of an uploaded
// prescription.
type PrescriptionStatus string

const (
	PrescriptionStatusPending     PrescriptionStatus = "pending"
	PrescriptionStatusApproved    PrescriptionStatus = "approved"
	PrescriptionStatusRejected    PrescriptionStatus = "rejected"
	PrescriptionStatusPaidPending PrescriptionStatus = "paid_pending"
	PrescriptionStatusFulfilled   PrescriptionStatus = "fulfilled"
)

var validPrescriptionStatuses = []PrescriptionStatus{
	PrescriptionStatusPending,
	PrescriptionStatusApproved,
	PrescriptionStatusRejected,
	PrescriptionStatusPaidPending,
	PrescriptionStatusFulfilled,
}

// String implements fmt.Stringer.
func (p PrescriptionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PrescriptionStatus.
func (p PrescriptionStatus) IsValid() bool {
	for _, candidate := range validPrescriptionStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePrescriptionStatus converts raw input into a PrescriptionStatus.
func ParsePrescriptionStatus(value string) (PrescriptionStatus, error) {
	for _, candidate := range validPrescriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid prescription status %q", value)
}
