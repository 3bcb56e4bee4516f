package auth

import "fmt"

// Role is the closed set of identity roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts a stored or transmitted role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Satisfies reports whether r grants at least the privileges of required.
func (r Role) Satisfies(required Role) bool {
	switch required {
	case RoleUser:
		return r == RoleUser || r == RoleAdmin
	case RoleAdmin:
		return r == RoleAdmin
	default:
		return false
	}
}

// Identity is the verified caller of a request.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanActFor reports whether i may act on a record owned by ownerID.
func (i Identity) CanActFor(ownerID string) bool {
	switch i.Role {
	case RoleAdmin:
		return true
	case RoleUser:
		return i.UserID != "" && i.UserID == ownerID
	default:
		return false
	}
}
