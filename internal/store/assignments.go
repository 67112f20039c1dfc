package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

const assignmentSelect = `SELECT a.id, a.item_id, a.staff_id, a.allocation_date, a.return_date, a.status,
	        a.created_at, a.updated_at, i.name, i.category, u.full_name, u.email
	 FROM item_assignments a
	 JOIN inventory_items i ON i.id = a.item_id
	 JOIN users u ON u.id = a.staff_id`

func scanAssignment(s scanner) (*model.Assignment, error) {
	a := &model.Assignment{}
	var returnDate sql.NullTime
	err := s.Scan(&a.ID, &a.ItemID, &a.StaffID, &a.AllocationDate, &returnDate, &a.Status,
		&a.CreatedAt, &a.UpdatedAt, &a.ItemName, &a.ItemCategory, &a.StaffName, &a.StaffEmail)
	if err != nil {
		return nil, err
	}
	if returnDate.Valid {
		a.ReturnDate = &returnDate.Time
	}
	return a, nil
}

func queryAssignments(ctx context.Context, q db.Querier, query string, args ...any) ([]model.Assignment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// InsertAssignment records a new allocation in the assigned state. It does
// not touch stock; the caller decrements the item in the same transaction.
func InsertAssignment(ctx context.Context, q db.Querier, itemID, staffID int64, allocatedAt time.Time) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO item_assignments (item_id, staff_id, allocation_date, status)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		itemID, staffID, allocatedAt, model.AssignmentAssigned,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting assignment: %w", err)
	}
	return id, nil
}

// GetAssignment returns an assignment by ID, or nil if it does not exist.
func GetAssignment(ctx context.Context, q db.Querier, id int64) (*model.Assignment, error) {
	a, err := scanAssignment(q.QueryRowContext(ctx, assignmentSelect+` WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting assignment: %w", err)
	}
	return a, nil
}

// ListAssignmentsByStaff returns a staff member's assignments, newest first.
func ListAssignmentsByStaff(ctx context.Context, q db.Querier, staffID int64) ([]model.Assignment, error) {
	return queryAssignments(ctx, q,
		assignmentSelect+` WHERE a.staff_id = ? ORDER BY a.allocation_date DESC, a.id DESC`, staffID)
}

// ListAssignmentsByItem returns every assignment of an item.
func ListAssignmentsByItem(ctx context.Context, q db.Querier, itemID int64) ([]model.Assignment, error) {
	return queryAssignments(ctx, q,
		assignmentSelect+` WHERE a.item_id = ? ORDER BY a.id`, itemID)
}

// ListPendingReturns returns assignments awaiting return, most recently
// requested first.
func ListPendingReturns(ctx context.Context, q db.Querier) ([]model.Assignment, error) {
	return queryAssignments(ctx, q,
		assignmentSelect+` WHERE a.status = ? ORDER BY a.updated_at DESC, a.id DESC`,
		model.AssignmentReturnRequested)
}

// MarkReturnRequested moves an assigned assignment owned by staffID to
// return_requested. It reports false, changing nothing, if no row matched.
func MarkReturnRequested(ctx context.Context, q db.Querier, id, staffID int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE item_assignments SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND staff_id = ? AND status = ?`,
		model.AssignmentReturnRequested, id, staffID, model.AssignmentAssigned,
	)
	if err != nil {
		return false, fmt.Errorf("requesting return: %w", err)
	}
	return affected(result)
}

// MarkReturned moves a return_requested assignment to returned and reports
// the item it held. ok is false, changing nothing, if no row matched.
func MarkReturned(ctx context.Context, q db.Querier, id int64, returnedAt time.Time) (itemID int64, ok bool, err error) {
	err = q.QueryRowContext(ctx,
		`UPDATE item_assignments SET status = ?, return_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ? RETURNING item_id`,
		model.AssignmentReturned, returnedAt, id, model.AssignmentReturnRequested,
	).Scan(&itemID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("completing return: %w", err)
	}
	return itemID, true, nil
}

// DeleteAssignmentsByItem removes every assignment of an item and returns how
// many were removed.
func DeleteAssignmentsByItem(ctx context.Context, q db.Querier, itemID int64) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM item_assignments WHERE item_id = ?`, itemID)
	if err != nil {
		return 0, fmt.Errorf("deleting assignments: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}

// CountAssignments counts assignments in any of the given statuses.
func CountAssignments(ctx context.Context, q db.Querier, statuses ...string) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}

	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")

	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_assignments WHERE status IN (`+placeholders+`)`, args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting assignments: %w", err)
	}
	return n, nil
}
