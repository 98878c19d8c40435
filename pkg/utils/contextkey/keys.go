package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	CycleID    key = "cycle_id"
	Submission key = "submission"
	Student    key = "student"
)
