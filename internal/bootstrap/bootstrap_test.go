package bootstrap

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

func TestEnsureAdmin(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	password, err := EnsureAdmin(ctx, database, "Admin@Example.com", "Administrator")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if len(password) != PasswordLength {
		t.Fatalf("expected %d character password, got %q", PasswordLength, password)
	}

	user, err := store.GetUserByEmail(ctx, database, "admin@example.com")
	if err != nil || user == nil {
		t.Fatalf("expected admin user, got %v, %v", user, err)
	}
	if user.Role != model.RoleAdmin {
		t.Errorf("expected admin role, got %q", user.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		t.Error("stored hash does not match generated password")
	}

	again, err := EnsureAdmin(ctx, database, "other@example.com", "Other")
	if err != nil {
		t.Fatalf("second EnsureAdmin: %v", err)
	}
	if again != "" {
		t.Error("expected no new admin when one exists")
	}
}

func TestCreateUserValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name, email, password, role string
	}{
		{"bad email", "nobody", "password1", model.RoleStaff},
		{"bad role", "a@example.com", "password1", "owner"},
		{"short password", "a@example.com", "short", model.RoleStaff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateUser(ctx, database, tt.email, "Name", "", tt.password, tt.role); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	u, err := CreateUser(ctx, database, "staff@example.com", "Staff", "IT", "password1", model.RoleStaff)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Department != "IT" {
		t.Errorf("expected department IT, got %q", u.Department)
	}

	if _, err := CreateUser(ctx, database, "STAFF@example.com", "Dup", "", "password1", model.RoleStaff); !db.IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword(24)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GeneratePassword(24)
	if len(a) != 24 || a == b {
		t.Errorf("expected distinct 24 character passwords, got %q and %q", a, b)
	}
	if strings.ContainsAny(a, " \t\n") {
		t.Errorf("unexpected whitespace in %q", a)
	}
}
