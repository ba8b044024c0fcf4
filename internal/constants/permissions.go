package constants

const (
	ViewData           = "view_data"
	ManageStructure    = "manage_structure"
	ManageAllocation   = "manage_allocation"
	RecordRealization  = "record_realization"
	Evaluate           = "evaluate"
	ApproveEvaluation  = "approve_evaluation"
	RecomputeHierarchy = "recompute_hierarchy"
)
