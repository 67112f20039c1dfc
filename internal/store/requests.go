package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

const requestSelect = `SELECT r.id, r.staff_id, r.item_name, r.justification, r.status, r.assignment_id,
	        r.created_at, r.updated_at, u.full_name, u.email
	 FROM item_requests r
	 JOIN users u ON u.id = r.staff_id`

func scanRequest(s scanner) (*model.Request, error) {
	r := &model.Request{}
	var justification sql.NullString
	var assignmentID sql.NullInt64
	err := s.Scan(&r.ID, &r.StaffID, &r.ItemName, &justification, &r.Status, &assignmentID,
		&r.CreatedAt, &r.UpdatedAt, &r.StaffName, &r.StaffEmail)
	if err != nil {
		return nil, err
	}
	r.Justification = justification.String
	if assignmentID.Valid {
		r.AssignmentID = &assignmentID.Int64
	}
	return r, nil
}

func queryRequests(ctx context.Context, q db.Querier, query string, args ...any) ([]model.Request, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// CreateRequest files a pending item request.
func CreateRequest(ctx context.Context, q db.Querier, staffID int64, itemName, justification string) (*model.Request, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO item_requests (staff_id, item_name, justification, status)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		staffID, itemName, nullString(justification), model.RequestPending,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return GetRequest(ctx, q, id)
}

// GetRequest returns a request by ID, or nil if it does not exist.
func GetRequest(ctx context.Context, q db.Querier, id int64) (*model.Request, error) {
	r, err := scanRequest(q.QueryRowContext(ctx, requestSelect+` WHERE r.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return r, nil
}

// ListRequestsByStaff returns a staff member's requests, newest first.
func ListRequestsByStaff(ctx context.Context, q db.Querier, staffID int64) ([]model.Request, error) {
	return queryRequests(ctx, q,
		requestSelect+` WHERE r.staff_id = ? ORDER BY r.created_at DESC, r.id DESC`, staffID)
}

// ListPendingRequests returns requests awaiting a decision, newest first.
func ListPendingRequests(ctx context.Context, q db.Querier) ([]model.Request, error) {
	return queryRequests(ctx, q,
		requestSelect+` WHERE r.status = ? ORDER BY r.created_at DESC, r.id DESC`, model.RequestPending)
}

// RequestHistory returns the most recently decided requests.
func RequestHistory(ctx context.Context, q db.Querier, limit int) ([]model.Request, error) {
	return queryRequests(ctx, q,
		requestSelect+` WHERE r.status <> ? ORDER BY r.updated_at DESC, r.id DESC LIMIT ?`,
		model.RequestPending, limit)
}

// DecideRequest moves a pending request to status, recording the assignment
// created for it if any. It reports false, changing nothing, if the request
// is missing or no longer pending.
func DecideRequest(ctx context.Context, q db.Querier, id int64, status string, assignmentID *int64) (bool, error) {
	var aid sql.NullInt64
	if assignmentID != nil {
		aid = sql.NullInt64{Int64: *assignmentID, Valid: true}
	}

	result, err := q.ExecContext(ctx,
		`UPDATE item_requests SET status = ?, assignment_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		status, aid, id, model.RequestPending,
	)
	if err != nil {
		return false, fmt.Errorf("deciding request: %w", err)
	}
	return affected(result)
}

// DetachRequestsFromItem clears the assignment link of requests whose
// assignment belongs to itemID.
func DetachRequestsFromItem(ctx context.Context, q db.Querier, itemID int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE item_requests SET assignment_id = NULL
		 WHERE assignment_id IN (SELECT id FROM item_assignments WHERE item_id = ?)`, itemID,
	)
	if err != nil {
		return fmt.Errorf("detaching requests: %w", err)
	}
	return nil
}

// CountRequests counts requests with the given status.
func CountRequests(ctx context.Context, q db.Querier, status string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_requests WHERE status = ?`, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting requests: %w", err)
	}
	return n, nil
}
