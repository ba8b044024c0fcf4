package constants

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewData:           {Viewer, Operator, Evaluator, Admin},
	ManageStructure:    {Admin},
	ManageAllocation:   {Operator, Admin},
	RecordRealization:  {Operator, Admin},
	Evaluate:           {Evaluator, Admin},
	ApproveEvaluation:  {Admin},
	RecomputeHierarchy: {Admin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
