package enums

import "fmt"

// OrderKind selects the order stream: pharmacy carts, lab-test carts, or
// orders generated from an uploaded prescription.
type OrderKind string

const (
	OrderKindPharmacy     OrderKind = "pharmacy"
	OrderKindTest         OrderKind = "test"
	OrderKindPrescription OrderKind = "prescription"
)

var validOrderKinds = []OrderKind{
	OrderKindPharmacy,
	OrderKindTest,
	OrderKindPrescription,
}

// String implements fmt.Stringer.
func (o OrderKind) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderKind.
func (o OrderKind) IsValid() bool {
	for _, candidate := range validOrderKinds {
		if candidate == o {
			return true
		}
	}
	return false
}

// PaymentKind maps an order kind onto its payment kind.
func (o OrderKind) PaymentKind() PaymentKind {
	switch o {
	case OrderKindTest:
		return PaymentKindTest
	case OrderKindPrescription:
		return PaymentKindPrescription
	default:
		return PaymentKindPharmacy
	}
}

// ParseOrderKind converts raw input into an OrderKind.
func ParseOrderKind(value string) (OrderKind, error) {
	for _, candidate := range validOrderKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order kind %q", value)
}
