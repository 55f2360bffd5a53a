package enums

import "fmt"

// DeliveryMethod covers both pharmacy handover and lab sample collection.
type DeliveryMethod string

const (
	DeliveryMethodPickup         DeliveryMethod = "pickup"
	DeliveryMethodHomeDelivery   DeliveryMethod = "delivery"
	DeliveryMethodLabCenter      DeliveryMethod = "center"
	DeliveryMethodHomeCollection DeliveryMethod = "home"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodPickup,
	DeliveryMethodHomeDelivery,
	DeliveryMethodLabCenter,
	DeliveryMethodHomeCollection,
}

// String implements fmt.Stringer.
func (d DeliveryMethod) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryMethod.
func (d DeliveryMethod) IsValid() bool {
	for _, candidate := range validDeliveryMethods {
		if candidate == d {
			return true
		}
	}
	return false
}

// RequiresAddress reports whether the method needs address and phone fields.
func (d DeliveryMethod) RequiresAddress() bool {
	return d == DeliveryMethodHomeDelivery || d == DeliveryMethodHomeCollection
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	for _, candidate := range validDeliveryMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery method %q", value)
}
