package enums

import "fmt"

// IntentStatus tracks the gateway lifecycle of a payment intent.
// Transitions are monotonic: created -> authorized -> captured, or -> failed;
// captured -> refunded.
type IntentStatus string

const (
	IntentStatusCreated    IntentStatus = "created"
	IntentStatusAuthorized IntentStatus = "authorized"
	IntentStatusCaptured   IntentStatus = "captured"
	IntentStatusFailed     IntentStatus = "failed"
	IntentStatusRefunded   IntentStatus = "refunded"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusCreated,
	IntentStatusAuthorized,
	IntentStatusCaptured,
	IntentStatusFailed,
	IntentStatusRefunded,
}

// String implements fmt.Stringer.
func (i IntentStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IntentStatus.
func (i IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further gateway transition is allowed,
// refunds excepted.
func (i IntentStatus) IsTerminal() bool {
	return i == IntentStatusCaptured || i == IntentStatusFailed || i == IntentStatusRefunded
}

// CanTransitionTo enforces the monotonic intent lifecycle.
func (i IntentStatus) CanTransitionTo(next IntentStatus) bool {
	switch i {
	case IntentStatusCreated:
		return next == IntentStatusAuthorized || next == IntentStatusCaptured || next == IntentStatusFailed
	case IntentStatusAuthorized:
		return next == IntentStatusCaptured || next == IntentStatusFailed
	case IntentStatusCaptured:
		return next == IntentStatusRefunded
	default:
		return false
	}
}

// ParseIntentStatus converts raw input into an IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}
