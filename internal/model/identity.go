package model

// Identity is the authenticated caller of an operation.
type Identity struct {
	SubjectID int64
	Role      string
}

// IsAdmin reports whether the caller holds the admin role.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// IsStaff reports whether the caller holds the staff role.
func (id Identity) IsStaff() bool { return id.Role == RoleStaff }
