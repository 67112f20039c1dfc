package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

func TestCreateAndDecideRequest(t *testing.T) {
	db.ForEachDialect(t, func(t *testing.T, database *db.DB) {
		ctx := context.Background()
		staff := mustCreateStaff(t, database, "ana@example.com")

		req, err := CreateRequest(ctx, database, staff.ID, "Laptop", "")
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		if req.Status != model.RequestPending {
			t.Errorf("expected pending, got %q", req.Status)
		}
		if req.Justification != "" || req.AssignmentID != nil {
			t.Errorf("expected empty justification and no assignment, got %+v", req)
		}
		if req.StaffEmail != "ana@example.com" {
			t.Errorf("expected joined staff email, got %q", req.StaffEmail)
		}

		ok, err := DecideRequest(ctx, database, req.ID, model.RequestRejected, nil)
		if err != nil || !ok {
			t.Fatalf("DecideRequest: ok=%v err=%v", ok, err)
		}

		ok, err = DecideRequest(ctx, database, req.ID, model.RequestApproved, nil)
		if err != nil {
			t.Fatalf("second DecideRequest: %v", err)
		}
		if ok {
			t.Error("expected decision on a decided request to report false")
		}

		got, _ := GetRequest(ctx, database, req.ID)
		if got.Status != model.RequestRejected {
			t.Errorf("expected rejected, got %q", got.Status)
		}

		if missing, _ := GetRequest(ctx, database, req.ID+100); missing != nil {
			t.Error("expected nil for missing request")
		}
	})
}

func TestDecideRequestRecordsAssignment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	staff := mustCreateStaff(t, database, "ana@example.com")
	item := mustCreateItem(t, database, "Laptop", 1)

	req, _ := CreateRequest(ctx, database, staff.ID, "Laptop", "new hire")
	aid, _ := InsertAssignment(ctx, database, item.ID, staff.ID, time.Now())

	if ok, err := DecideRequest(ctx, database, req.ID, model.RequestApproved, &aid); err != nil || !ok {
		t.Fatalf("DecideRequest: ok=%v err=%v", ok, err)
	}

	got, _ := GetRequest(ctx, database, req.ID)
	if got.AssignmentID == nil || *got.AssignmentID != aid {
		t.Errorf("expected assignment id %d, got %v", aid, got.AssignmentID)
	}
	if got.Justification != "new hire" {
		t.Errorf("expected justification, got %q", got.Justification)
	}

	if err := DetachRequestsFromItem(ctx, database, item.ID); err != nil {
		t.Fatalf("DetachRequestsFromItem: %v", err)
	}
	got, _ = GetRequest(ctx, database, req.ID)
	if got.AssignmentID != nil {
		t.Errorf("expected assignment link cleared, got %v", *got.AssignmentID)
	}
	if got.Status != model.RequestApproved {
		t.Errorf("expected status to stay approved, got %q", got.Status)
	}
}

func TestRequestListings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	ana := mustCreateStaff(t, database, "ana@example.com")
	bor := mustCreateStaff(t, database, "bor@example.com")

	r1, _ := CreateRequest(ctx, database, ana.ID, "Laptop", "")
	CreateRequest(ctx, database, ana.ID, "Mouse", "")
	r3, _ := CreateRequest(ctx, database, bor.ID, "Desk", "")
	DecideRequest(ctx, database, r1.ID, model.RequestRejected, nil)
	DecideRequest(ctx, database, r3.ID, model.RequestRejected, nil)

	mine, err := ListRequestsByStaff(ctx, database, ana.ID)
	if err != nil {
		t.Fatalf("ListRequestsByStaff: %v", err)
	}
	if len(mine) != 2 || mine[0].ItemName != "Mouse" {
		t.Errorf("expected 2 requests newest first, got %v", mine)
	}

	pending, _ := ListPendingRequests(ctx, database)
	if len(pending) != 1 || pending[0].ItemName != "Mouse" {
		t.Errorf("expected only Mouse pending, got %v", pending)
	}

	history, _ := RequestHistory(ctx, database, 1)
	if len(history) != 1 {
		t.Errorf("expected history limited to 1, got %d", len(history))
	}

	if n, _ := CountRequests(ctx, database, model.RequestRejected); n != 2 {
		t.Errorf("expected 2 rejected, got %d", n)
	}
}
