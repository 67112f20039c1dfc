package model

import (
	"errors"
	"strings"
	"time"
)

// Request is a staff member's free-text ask for an item, awaiting an admin
// decision.
type Request struct {
	ID            int64     `json:"id"`
	StaffID       int64     `json:"staff_id"`
	ItemName      string    `json:"item_name"`
	Justification string    `json:"justification,omitempty"`
	Status        string    `json:"status"`
	AssignmentID  *int64    `json:"assignment_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	StaffName  string `json:"staff_name,omitempty"`
	StaffEmail string `json:"staff_email,omitempty"`
}

// Request statuses. Pending moves once to approved or rejected.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// MaxItemNameLength bounds the requested item name.
const MaxItemNameLength = 100

// NormalizeRequest trims the submitted fields and validates the item name.
func NormalizeRequest(itemName, justification string) (string, string, error) {
	itemName = strings.TrimSpace(itemName)
	justification = strings.TrimSpace(justification)
	if itemName == "" {
		return "", "", errors.New("item name required")
	}
	if len(itemName) > MaxItemNameLength {
		return "", "", errors.New("item name too long")
	}
	return itemName, justification, nil
}
