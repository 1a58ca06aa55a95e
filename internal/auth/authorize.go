package auth

// Role is a capability an operation requires from its caller.
type Role string

const (
	RoleAny        Role = "any"
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// Principal is the authenticated caller, linked to exactly one profile.
type Principal struct {
	ProfileID  string
	Instructor bool
}

// Role returns the principal's own role.
func (p Principal) Role() Role {
	if p.Instructor {
		return RoleInstructor
	}
	return RoleStudent
}

// Authorize reports whether p may perform an operation requiring role.
func Authorize(p Principal, required Role) bool {
	if p.ProfileID == "" {
		return false
	}
	switch required {
	case RoleAny:
		return true
	case RoleStudent:
		return !p.Instructor
	case RoleInstructor:
		return p.Instructor
	default:
		return false
	}
}
