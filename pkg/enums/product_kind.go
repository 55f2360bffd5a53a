package enums

import "fmt"

// ProductKind discriminates catalog rows between medicines and lab tests.
type ProductKind string

const (
	ProductKindMedicine ProductKind = "medicine"
	ProductKindTest     ProductKind = "test"
)

var validProductKinds = []ProductKind{
	ProductKindMedicine,
	ProductKindTest,
}

// String implements fmt.Stringer.
func (p ProductKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductKind.
func (p ProductKind) IsValid() bool {
	for _, candidate := range validProductKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductKind converts raw input into a ProductKind.
func ParseProductKind(value string) (ProductKind, error) {
	for _, candidate := range validProductKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product kind %q", value)
}
