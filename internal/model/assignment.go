package model

import "time"

// Assignment records one unit of an item allocated to a staff member.
type Assignment struct {
	ID             int64      `json:"id"`
	ItemID         int64      `json:"item_id"`
	StaffID        int64      `json:"staff_id"`
	AllocationDate time.Time  `json:"allocation_date"`
	ReturnDate     *time.Time `json:"return_date,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Joined fields (not always populated).
	ItemName     string `json:"item_name,omitempty"`
	ItemCategory string `json:"item_category,omitempty"`
	StaffName    string `json:"staff_name,omitempty"`
	StaffEmail   string `json:"staff_email,omitempty"`
}

// Assignment statuses. The lifecycle is linear:
// assigned -> return_requested -> returned.
const (
	AssignmentAssigned        = "assigned"
	AssignmentReturnRequested = "return_requested"
	AssignmentReturned        = "returned"
)

// Active reports whether the assignment still holds a unit of stock.
func (a Assignment) Active() bool {
	return a.Status == AssignmentAssigned || a.Status == AssignmentReturnRequested
}
