package enums

import "fmt"

// CollectionStatus is the lab-test fulfillment state of an order.
type CollectionStatus string

const (
	CollectionStatusPending    CollectionStatus = "pending"
	CollectionStatusScheduled  CollectionStatus = "scheduled"
	CollectionStatusInProgress CollectionStatus = "in_progress"
	CollectionStatusCollected  CollectionStatus = "collected"
	CollectionStatusProcessing CollectionStatus = "processing"
	CollectionStatusCompleted  CollectionStatus = "completed"
	CollectionStatusCancelled  CollectionStatus = "cancelled"
)

var validCollectionStatuses = []CollectionStatus{
	CollectionStatusPending,
	CollectionStatusScheduled,
	CollectionStatusInProgress,
	CollectionStatusCollected,
	CollectionStatusProcessing,
	CollectionStatusCompleted,
	CollectionStatusCancelled,
}

// String implements fmt.Stringer.
func (c CollectionStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CollectionStatus.
func (c CollectionStatus) IsValid() bool {
	for _, candidate := range validCollectionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the test machine accepts no further moves.
func (c CollectionStatus) IsTerminal() bool {
	return c == CollectionStatusCompleted || c == CollectionStatusCancelled
}

// ParseCollectionStatus converts raw input into a CollectionStatus.
func ParseCollectionStatus(value string) (CollectionStatus, error) {
	for _, candidate := range validCollectionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collection status %q", value)
}
