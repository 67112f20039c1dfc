package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

func TestInventoryStats(t *testing.T) {
	db.ForEachDialect(t, func(t *testing.T, database *db.DB) {
		ctx := context.Background()

		stats, err := GetInventoryStats(ctx, database)
		if err != nil {
			t.Fatalf("GetInventoryStats: %v", err)
		}
		if stats.TotalItems != 0 || stats.TotalQuantity != 0 || stats.AveragePrice.Valid {
			t.Errorf("expected empty stats, got %+v", stats)
		}

		price := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(s)) }
		CreateItem(ctx, database, model.ItemInput{Name: "A", Category: "c", QuantityAvailable: 2, UnitPrice: price("10.00")})
		CreateItem(ctx, database, model.ItemInput{Name: "B", Category: "c", QuantityAvailable: 3, UnitPrice: price("15.50")})
		CreateItem(ctx, database, model.ItemInput{Name: "C", Category: "c", QuantityAvailable: 1})

		stats, _ = GetInventoryStats(ctx, database)
		if stats.TotalItems != 3 || stats.TotalQuantity != 6 {
			t.Errorf("expected 3 items / 6 units, got %+v", stats)
		}
		if !stats.AveragePrice.Valid || !stats.AveragePrice.Decimal.Equal(decimal.RequireFromString("12.75")) {
			t.Errorf("expected average price 12.75, got %v", stats.AveragePrice)
		}
	})
}

func TestDashboardStats(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	staff := mustCreateStaff(t, database, "ana@example.com")
	item := mustCreateItem(t, database, "Laptop", 4)

	CreateRequest(ctx, database, staff.ID, "Mouse", "")
	a1, _ := InsertAssignment(ctx, database, item.ID, staff.ID, time.Now())
	InsertAssignment(ctx, database, item.ID, staff.ID, time.Now())
	MarkReturnRequested(ctx, database, a1, staff.ID)

	stats, err := GetDashboardStats(ctx, database)
	if err != nil {
		t.Fatalf("GetDashboardStats: %v", err)
	}
	want := model.DashboardStats{
		InventoryCount:    1,
		TotalQuantity:     4,
		PendingRequests:   1,
		PendingReturns:    1,
		ActiveAssignments: 2,
	}
	if stats != want {
		t.Errorf("expected %+v, got %+v", want, stats)
	}
}
