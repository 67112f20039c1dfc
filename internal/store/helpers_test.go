package store

import (
	"context"
	"testing"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

func mustCreateStaff(t *testing.T, q db.Querier, email string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), q, email, "Staff "+email, "IT", "hash", model.RoleStaff)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func mustCreateItem(t *testing.T, q db.Querier, name string, qty int) *model.InventoryItem {
	t.Helper()
	item, err := CreateItem(context.Background(), q, model.ItemInput{
		Name: name, Category: "Equipment", QuantityAvailable: qty,
	})
	if err != nil {
		t.Fatalf("CreateItem(%s): %v", name, err)
	}
	return item
}
