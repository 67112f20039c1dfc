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

const itemColumns = `id, name, category, quantity_available, purchase_date, unit_price,
	image_mime, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*model.InventoryItem, error) {
	item := &model.InventoryItem{}
	var purchaseDate sql.NullTime
	var imageMime sql.NullString
	err := s.Scan(&item.ID, &item.Name, &item.Category, &item.QuantityAvailable, &purchaseDate,
		&item.UnitPrice, &imageMime, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if purchaseDate.Valid {
		item.PurchaseDate = &purchaseDate.Time
	}
	item.ImageMime = imageMime.String
	return item, nil
}

func scanItems(rows *sql.Rows) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CreateItem creates a new inventory item.
func CreateItem(ctx context.Context, q db.Querier, in model.ItemInput) (*model.InventoryItem, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO inventory_items (name, category, quantity_available, purchase_date, unit_price)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		in.Name, in.Category, in.QuantityAvailable, nullTime(in.PurchaseDate), in.UnitPrice,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, q db.Querier, id int64) (*model.InventoryItem, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns items newest first, optionally filtered by a
// case-insensitive match on name or category.
func ListItems(ctx context.Context, q db.Querier, search string) ([]model.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items`
	var args []any

	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query += ` WHERE LOWER(name) LIKE ? OR LOWER(category) LIKE ?`
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListAvailableItems returns items with stock on hand, by name.
func ListAvailableItems(ctx context.Context, q db.Querier) ([]model.InventoryItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items
		 WHERE quantity_available > 0 ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing available items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// LatestItems returns the n most recently created items.
func LatestItems(ctx context.Context, q db.Querier, n int) ([]model.InventoryItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items
		 ORDER BY created_at DESC, id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("listing latest items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// LowStockItems returns items at or below threshold, scarcest first.
func LowStockItems(ctx context.Context, q db.Querier, threshold int) ([]model.InventoryItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items
		 WHERE quantity_available <= ? ORDER BY quantity_available, name`, threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("listing low stock items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// UpdateItem overwrites an item's editable fields. It reports false if the
// item does not exist.
func UpdateItem(ctx context.Context, q db.Querier, id int64, in model.ItemInput) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_items
		 SET name = ?, category = ?, quantity_available = ?, purchase_date = ?, unit_price = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Name, in.Category, in.QuantityAvailable, nullTime(in.PurchaseDate), in.UnitPrice, id,
	)
	if err != nil {
		return false, fmt.Errorf("updating item: %w", err)
	}
	return affected(result)
}

// LockItem reads an item while holding an exclusive lock on its row until the
// transaction ends. Concurrent lockers of the same item wait up to the
// database lock timeout. Returns nil if the item does not exist.
func LockItem(ctx context.Context, tx *db.Tx, id int64) (*model.InventoryItem, error) {
	var row *sql.Row

	switch tx.Dialect() {
	case db.DialectPostgres:
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", tx.LockTimeout().Milliseconds())
		if _, err := tx.ExecContext(ctx, timeout); err != nil {
			return nil, fmt.Errorf("setting lock timeout: %w", err)
		}
		row = tx.QueryRowContext(ctx,
			`SELECT `+itemColumns+` FROM inventory_items WHERE id = ? FOR UPDATE`, id,
		)
	default:
		// SQLite locks the whole database for writing; a no-op update takes
		// that lock before the row is read.
		row = tx.QueryRowContext(ctx,
			`UPDATE inventory_items SET quantity_available = quantity_available
			 WHERE id = ? RETURNING `+itemColumns, id,
		)
	}

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking item: %w", err)
	}
	return item, nil
}

// DecrementItemQuantity takes one unit of stock. It reports false, changing
// nothing, if the item is missing or has none left.
func DecrementItemQuantity(ctx context.Context, q db.Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_items
		 SET quantity_available = quantity_available - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND quantity_available > 0`, id,
	)
	if err != nil {
		return false, fmt.Errorf("decrementing item quantity: %w", err)
	}
	return affected(result)
}

// IncrementItemQuantity puts one unit back into stock. It reports false if
// the item does not exist.
func IncrementItemQuantity(ctx context.Context, q db.Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_items
		 SET quantity_available = quantity_available + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, id,
	)
	if err != nil {
		return false, fmt.Errorf("incrementing item quantity: %w", err)
	}
	return affected(result)
}

// DeleteItemRow removes the item row only. Callers must first remove rows
// that reference it.
func DeleteItemRow(ctx context.Context, q db.Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return affected(result)
}

// SetItemImage stores an item's photo and thumbnail.
func SetItemImage(ctx context.Context, q db.Querier, id int64, image, thumbnail []byte, mime string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_items SET image = ?, thumbnail = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		image, thumbnail, mime, id,
	)
	if err != nil {
		return false, fmt.Errorf("setting item image: %w", err)
	}
	return affected(result)
}

// GetItemImage returns an item's photo (or its thumbnail) and MIME type.
// The data is nil if the item or photo does not exist.
func GetItemImage(ctx context.Context, q db.Querier, id int64, thumbnail bool) ([]byte, string, error) {
	column := "image"
	if thumbnail {
		column = "thumbnail"
	}

	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT `+column+`, image_mime FROM inventory_items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}
