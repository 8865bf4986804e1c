package models

import "strconv"

// Role is an ordinal user role. Roles at or above RolePremium (boundary
// inclusive) have an unlimited monthly story quota.
type Role int

const (
	RoleFree Role = iota
	RoleBasic
	RolePremium
	RoleAdmin
)

// IsUnlimited reports whether the role bypasses the monthly quota.
func (r Role) IsUnlimited() bool {
	return r >= RolePremium
}

func (r Role) String() string {
	switch r {
	case RoleFree:
		return "free"
	case RoleBasic:
		return "basic"
	case RolePremium:
		return "premium"
	case RoleAdmin:
		return "admin"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// ParseRole maps a wire value to a Role, defaulting to RoleFree for anything
// unknown so an upstream header mistake never grants unlimited quota.
func ParseRole(raw string) Role {
	switch raw {
	case "free", "0":
		return RoleFree
	case "basic", "1":
		return RoleBasic
	case "premium", "2":
		return RolePremium
	case "admin", "3":
		return RoleAdmin
	default:
		return RoleFree
	}
}
