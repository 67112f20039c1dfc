// Package report assembles the admin dashboard and reports and exports them
// as XLSX workbooks.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

const (
	// LatestItems is how many new items the dashboard lists.
	LatestItems = 3
	// RecentFeedback is how many feedback entries the report lists.
	RecentFeedback = 10
)

// Dashboard is the admin landing page.
type Dashboard struct {
	Stats  model.DashboardStats  `json:"stats"`
	Latest []model.InventoryItem `json:"latest_items"`
}

// Summary is the admin report page.
type Summary struct {
	Inventory         model.InventoryStats  `json:"inventory"`
	Feedback          model.FeedbackStats   `json:"feedback"`
	RecentFeedback    []model.Feedback      `json:"recent_feedback"`
	LowStock          []model.InventoryItem `json:"low_stock"`
	LowStockThreshold int                   `json:"low_stock_threshold"`
	ActiveAssignments int                   `json:"active_assignments"`
}

// BuildDashboard gathers the dashboard counters and newest items.
func BuildDashboard(ctx context.Context, q db.Querier) (*Dashboard, error) {
	stats, err := store.GetDashboardStats(ctx, q)
	if err != nil {
		return nil, err
	}
	latest, err := store.LatestItems(ctx, q, LatestItems)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Stats: stats, Latest: nonNil(latest)}, nil
}

// BuildSummary gathers the report figures. Items at or below threshold count
// as low on stock.
func BuildSummary(ctx context.Context, q db.Querier, threshold int) (*Summary, error) {
	s := &Summary{LowStockThreshold: threshold}
	var err error

	if s.Inventory, err = store.GetInventoryStats(ctx, q); err != nil {
		return nil, err
	}
	if s.Feedback, err = store.GetFeedbackStats(ctx, q); err != nil {
		return nil, err
	}
	if s.RecentFeedback, err = store.RecentFeedback(ctx, q, RecentFeedback); err != nil {
		return nil, err
	}
	if s.LowStock, err = store.LowStockItems(ctx, q, threshold); err != nil {
		return nil, err
	}
	if s.ActiveAssignments, err = store.CountAssignments(ctx, q,
		model.AssignmentAssigned, model.AssignmentReturnRequested); err != nil {
		return nil, err
	}

	if s.RecentFeedback == nil {
		s.RecentFeedback = []model.Feedback{}
	}
	s.LowStock = nonNil(s.LowStock)
	return s, nil
}

// Export writes the full inventory and the report summary as a workbook.
func Export(ctx context.Context, q db.Querier, threshold int, w io.Writer) error {
	items, err := store.ListItems(ctx, q, "")
	if err != nil {
		return err
	}
	summary, err := BuildSummary(ctx, q, threshold)
	if err != nil {
		return err
	}
	return WriteXLSX(w, items, summary)
}

// Sheet names in exported workbooks.
const (
	SheetInventory = "Inventory"
	SheetLowStock  = "Low stock"
	SheetFeedback  = "Feedback"
	SheetSummary   = "Summary"
)

var itemHeader = []any{"ID", "Name", "Category", "Available", "Purchase date", "Unit price"}

// WriteXLSX renders items and s into an XLSX workbook.
func WriteXLSX(w io.Writer, items []model.InventoryItem, s *Summary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetInventory); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	for _, name := range []string{SheetLowStock, SheetFeedback, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("adding sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}

	if err := writeTable(f, SheetInventory, bold, itemHeader, itemRows(items)); err != nil {
		return err
	}
	if err := writeTable(f, SheetLowStock, bold, itemHeader, itemRows(s.LowStock)); err != nil {
		return err
	}

	feedbackHeader := []any{"Date", "Staff", "Rating", "Q1", "Q2", "Q3", "Q4", "Q5"}
	feedbackRows := make([][]any, 0, len(s.RecentFeedback))
	for _, fb := range s.RecentFeedback {
		row := []any{fb.CreatedAt.Format("2006-01-02 15:04"), fb.StaffName, fb.Rating}
		for _, a := range fb.Answers {
			row = append(row, a)
		}
		feedbackRows = append(feedbackRows, row)
	}
	if err := writeTable(f, SheetFeedback, bold, feedbackHeader, feedbackRows); err != nil {
		return err
	}

	avgPrice := any("")
	if s.Inventory.AveragePrice.Valid {
		avgPrice = s.Inventory.AveragePrice.Decimal.InexactFloat64()
	}
	summaryRows := [][]any{
		{"Total items", s.Inventory.TotalItems},
		{"Total quantity", s.Inventory.TotalQuantity},
		{"Average unit price", avgPrice},
		{"Active assignments", s.ActiveAssignments},
		{"Low stock threshold", s.LowStockThreshold},
		{"Feedback entries", s.Feedback.Total},
		{"Average rating", s.Feedback.AverageRating.InexactFloat64()},
	}
	if err := writeTable(f, SheetSummary, bold, []any{"Metric", "Value"}, summaryRows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func itemRows(items []model.InventoryItem) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		purchased := ""
		if it.PurchaseDate != nil {
			purchased = it.PurchaseDate.Format("2006-01-02")
		}
		price := any("")
		if it.UnitPrice.Valid {
			price = it.UnitPrice.Decimal.InexactFloat64()
		}
		rows = append(rows, []any{it.ID, it.Name, it.Category, it.QuantityAvailable, purchased, price})
	}
	return rows
}

func writeTable(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}

func nonNil(items []model.InventoryItem) []model.InventoryItem {
	if items == nil {
		return []model.InventoryItem{}
	}
	return items
}
