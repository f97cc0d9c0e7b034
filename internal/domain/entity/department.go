package entity

import "time"

// Department is municipal reference data consulted by the router. Owned
// externally; read-only from the core's perspective.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Categories this department is the exact-mapping target for.
	Categories []string `json:"categories"`

	// Keyword profile used by the router's overlap stage.
	Keywords []string `json:"keywords"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Officer is a department member eligible for task assignment.
type Officer struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	DepartmentID int64  `json:"department_id"`
	Name         string `json:"name"`

	// Categories the officer handles; consulted for the match confidence.
	Specializations []string `json:"specializations"`

	Active         bool       `json:"active"`
	LastAssignedAt *time.Time `json:"last_assigned_at,omitempty"`
}
