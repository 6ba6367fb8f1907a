package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/model"
)

const itemColumns = `id, name, description, status, reported_by, image, user_id, date_reported`

type itemRow struct {
	ID           int64          `db:"id"`
	Name         string         `db:"name"`
	Description  sql.NullString `db:"description"`
	Status       string         `db:"status"`
	ReportedBy   string         `db:"reported_by"`
	Image        sql.NullString `db:"image"`
	UserID       int64          `db:"user_id"`
	DateReported sql.NullTime   `db:"date_reported"`
}

func (r itemRow) model() *model.Item {
	return &model.Item{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description.String,
		Status:       r.Status,
		ReportedBy:   r.ReportedBy,
		Image:        nullableString(r.Image),
		UserID:       r.UserID,
		DateReported: timeOrNow("items", r.ID, "date_reported", r.DateReported),
	}
}

// ItemFilter narrows ListItems. Zero fields are ignored.
type ItemFilter struct {
	Status     string
	ReportedBy string
	UserID     int64
	// Search matches a case-insensitive substring of name or description.
	Search string
}

func (f ItemFilter) clause() (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.ReportedBy != "" {
		conds = append(conds, "reported_by = ?")
		args = append(args, f.ReportedBy)
	}
	if f.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := likePattern(s)
		conds = append(conds, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	return where(conds), args
}

// GetItem returns an item by ID, or nil if there is none.
func GetItem(ctx context.Context, q sqlx.ExtContext, id int64) (*model.Item, error) {
	var row itemRow
	found, err := getOne(ctx, q, &row, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.model(), nil
}

// ListItems returns matching items, newest report first.
func ListItems(ctx context.Context, q sqlx.ExtContext, f ItemFilter) ([]model.Item, error) {
	cond, args := f.clause()
	var rows []itemRow
	err := selectAll(ctx, q, &rows,
		`SELECT `+itemColumns+` FROM items`+cond+` ORDER BY date_reported DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	items := make([]model.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, *r.model())
	}
	return items, nil
}

// SaveItem inserts item when it has no ID and updates it otherwise.
func SaveItem(ctx context.Context, q sqlx.ExtContext, item *model.Item) (*model.Item, error) {
	if item.ID != 0 {
		err := updateOne(ctx, q,
			`UPDATE items SET name = ?, description = ?, status = ?, reported_by = ?, image = ?, user_id = ?
			 WHERE id = ?`,
			item.Name, item.Description, item.Status, item.ReportedBy, item.Image, item.UserID, item.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating item %d: %w", item.ID, err)
		}
		return item, nil
	}

	if item.DateReported.IsZero() {
		item.DateReported = time.Now().UTC()
	}
	id, err := insertReturningID(ctx, q,
		`INSERT INTO items (name, description, status, reported_by, image, user_id, date_reported)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		item.Name, item.Description, item.Status, item.ReportedBy, item.Image, item.UserID, item.DateReported,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	item.ID = id
	return item, nil
}

// DeleteItem removes an item and, by cascade, its claims.
func DeleteItem(ctx context.Context, q sqlx.ExtContext, id int64) error {
	if _, err := exec(ctx, q, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// CountItems returns the number of items.
func CountItems(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	n, err := count(ctx, q, `SELECT COUNT(*) FROM items`)
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// CountItemsByStatus returns the number of items with the given status.
func CountItemsByStatus(ctx context.Context, q sqlx.ExtContext, status string) (int64, error) {
	n, err := count(ctx, q, `SELECT COUNT(*) FROM items WHERE status = ?`, status)
	if err != nil {
		return 0, fmt.Errorf("counting items by status: %w", err)
	}
	return n, nil
}
