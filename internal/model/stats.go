package model

import "github.com/shopspring/decimal"

// InventoryStats summarises the catalog.
type InventoryStats struct {
	TotalItems    int                 `json:"total_items"`
	TotalQuantity int                 `json:"total_quantity"`
	AveragePrice  decimal.NullDecimal `json:"average_price"`
}

// DashboardStats are the counters shown on the admin dashboard.
type DashboardStats struct {
	InventoryCount    int `json:"inventory_count"`
	TotalQuantity     int `json:"total_quantity"`
	PendingRequests   int `json:"pending_requests"`
	PendingReturns    int `json:"pending_returns"`
	ActiveAssignments int `json:"active_assignments"`
}
