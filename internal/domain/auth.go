package domain

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID   int64
	TenantID int64
	IsAdmin  bool
}
