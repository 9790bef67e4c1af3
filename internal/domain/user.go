package domain

// DirectoryUser is the slice of the external identity directory the workflow
// needs: tenancy and department membership.
type DirectoryUser struct {
	ID           int64
	TenantID     int64
	DepartmentID *int64
	DisplayName  string
}
