package store

import (
	"context"
	"fmt"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

// GetInventoryStats returns item and unit totals and the average unit price.
func GetInventoryStats(ctx context.Context, q db.Querier) (model.InventoryStats, error) {
	var stats model.InventoryStats
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(quantity_available), 0), AVG(CAST(unit_price AS NUMERIC))
		 FROM inventory_items`,
	).Scan(&stats.TotalItems, &stats.TotalQuantity, &stats.AveragePrice)
	if err != nil {
		return stats, fmt.Errorf("getting inventory stats: %w", err)
	}
	if stats.AveragePrice.Valid {
		stats.AveragePrice.Decimal = stats.AveragePrice.Decimal.Round(2)
	}
	return stats, nil
}

// GetDashboardStats returns the admin dashboard counters.
func GetDashboardStats(ctx context.Context, q db.Querier) (model.DashboardStats, error) {
	var stats model.DashboardStats

	inv, err := GetInventoryStats(ctx, q)
	if err != nil {
		return stats, err
	}
	stats.InventoryCount = inv.TotalItems
	stats.TotalQuantity = inv.TotalQuantity

	if stats.PendingRequests, err = CountRequests(ctx, q, model.RequestPending); err != nil {
		return stats, err
	}
	if stats.PendingReturns, err = CountAssignments(ctx, q, model.AssignmentReturnRequested); err != nil {
		return stats, err
	}
	if stats.ActiveAssignments, err = CountAssignments(ctx, q,
		model.AssignmentAssigned, model.AssignmentReturnRequested); err != nil {
		return stats, err
	}

	return stats, nil
}
