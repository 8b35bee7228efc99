package domain

// EmployeeRole enumerates roles carried in identity tokens.
type EmployeeRole string

const (
	EmployeeRoleAdmin    EmployeeRole = "ADMIN"
	EmployeeRoleEmployee EmployeeRole = "EMPLOYEE"
)

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	EmployeeID string
	Role       EmployeeRole
}
