package constants

const (
	Admin     = "admin"
	Evaluator = "evaluator"
	Operator  = "operator"
	Viewer    = "viewer"
)

// ValidRoles is the set of roles the auth service may put in a session.
var ValidRoles = []string{Viewer, Operator, Evaluator, Admin}

// IsValidRole returns true if role is one of ValidRoles.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
