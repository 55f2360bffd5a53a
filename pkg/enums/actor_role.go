package enums

import "fmt"

// ActorRole identifies who is acting on an order.
type ActorRole string

const (
	ActorRolePatient       ActorRole = "patient"
	ActorRolePharmacist    ActorRole = "pharmacist"
	ActorRoleLabTechnician ActorRole = "lab_technician"
	ActorRoleAdmin         ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRolePatient,
	ActorRolePharmacist,
	ActorRoleLabTechnician,
	ActorRoleAdmin,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role may drive fulfillment transitions.
func (a ActorRole) IsStaff() bool {
	return a == ActorRolePharmacist || a == ActorRoleLabTechnician || a == ActorRoleAdmin
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
