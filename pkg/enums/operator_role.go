package enums

import "fmt"

// OperatorRole scopes what an admin API token may do.
type OperatorRole string

const (
	// OperatorRoleViewer can read baskets, indices and the error log.
	OperatorRoleViewer OperatorRole = "viewer"
	// OperatorRoleAdmin can also mutate baskets, trigger refreshes and resolve errors.
	OperatorRoleAdmin OperatorRole = "admin"
)

var validOperatorRoles = []OperatorRole{
	OperatorRoleViewer,
	OperatorRoleAdmin,
}

// String implements fmt.Stringer.
func (r OperatorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known OperatorRole.
func (r OperatorRole) IsValid() bool {
	for _, candidate := range validOperatorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseOperatorRole converts raw input into an OperatorRole.
func ParseOperatorRole(value string) (OperatorRole, error) {
	for _, candidate := range validOperatorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operator role %q", value)
}
