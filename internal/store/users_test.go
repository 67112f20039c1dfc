package store

import (
	"context"
	"testing"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	db.ForEachDialect(t, func(t *testing.T, database *db.DB) {
		ctx := context.Background()

		user, err := CreateUser(ctx, database, "ana@example.com", "Ana Novak", "Finance", "hash123", model.RoleStaff)
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if user.Email != "ana@example.com" {
			t.Errorf("expected email 'ana@example.com', got %q", user.Email)
		}
		if user.Department != "Finance" {
			t.Errorf("expected department 'Finance', got %q", user.Department)
		}

		got, err := GetUser(ctx, database, user.ID)
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if got.FullName != "Ana Novak" || got.Role != model.RoleStaff {
			t.Errorf("unexpected user %+v", got)
		}
	})
}

func TestGetUserByEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "alice@example.com", "Alice", "", "hash", model.RoleAdmin)

	user, err := GetUserByEmail(ctx, database, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Department != "" {
		t.Errorf("expected empty department, got %q", user.Department)
	}

	missing, err := GetUserByEmail(ctx, database, "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "ana@example.com", "Ana", "", "h", model.RoleStaff); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := CreateUser(ctx, database, "ana@example.com", "Other Ana", "", "h", model.RoleStaff)
	if !db.IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestSoftDeleteFreesEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustCreateStaff(t, database, "ana@example.com")

	ok, err := DeleteUser(ctx, database, user.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteUser: ok=%v err=%v", ok, err)
	}

	if got, _ := GetUserByEmail(ctx, database, "ana@example.com"); got != nil {
		t.Error("expected deleted user to be hidden from email lookup")
	}
	if got, _ := GetUser(ctx, database, user.ID); got == nil || got.DeletedAt == nil {
		t.Error("expected deleted user to remain with deleted_at set")
	}

	if _, err := CreateUser(ctx, database, "ana@example.com", "Ana 2", "", "h", model.RoleStaff); err != nil {
		t.Errorf("expected email reuse after soft delete, got %v", err)
	}

	ok, _ = DeleteUser(ctx, database, user.ID)
	if ok {
		t.Error("expected second delete to report false")
	}
}

func TestListUsersByRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "admin@example.com", "Admin", "", "h", model.RoleAdmin)
	mustCreateStaff(t, database, "a@example.com")
	mustCreateStaff(t, database, "b@example.com")

	all, err := ListUsers(ctx, database, "")
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 users, got %d", len(all))
	}

	staff, _ := ListUsers(ctx, database, model.RoleStaff)
	if len(staff) != 2 {
		t.Errorf("expected 2 staff, got %d", len(staff))
	}
}

func TestUpdateUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustCreateStaff(t, database, "ana@example.com")

	ok, err := UpdateUser(ctx, database, user.ID, "Ana N.", "HR", model.RoleAdmin)
	if err != nil || !ok {
		t.Fatalf("UpdateUser: ok=%v err=%v", ok, err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.FullName != "Ana N." || got.Department != "HR" || got.Role != model.RoleAdmin {
		t.Errorf("unexpected user after update: %+v", got)
	}

	if err := UpdateUserPassword(ctx, database, user.ID, "newhash"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	got, _ = GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash updated, got %q", got.PasswordHash)
	}
}
