package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

// Items manages lost and found reports.
type Items struct {
	db *sqlx.DB
}

// NewItems returns an Items service backed by db.
func NewItems(db *sqlx.DB) *Items {
	return &Items{db: db}
}

// NewItem is a report submitted by a user. Image is the stored path of an
// already saved upload, if any.
type NewItem struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description" validate:"required,max=1000"`
	Status      string  `json:"status" validate:"required"`
	Image       *string `json:"-"`
}

// Validate trims and checks the report, normalizing Status to Lost or Found.
func (in NewItem) Validate() (NewItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return in, err
	}
	status, ok := model.NormalizeItemStatus(in.Status)
	if !ok {
		return in, invalid("status", "status must be Lost or Found")
	}
	in.Status = status
	return in, nil
}

// ItemStats summarizes the item table.
type ItemStats struct {
	Total int64 `json:"total"`
	Lost  int64 `json:"lost"`
	Found int64 `json:"found"`
}

// List returns items matching f, newest first.
func (s *Items) List(ctx context.Context, f store.ItemFilter) ([]model.Item, error) {
	return store.ListItems(ctx, s.db, f)
}

// Get returns the item with the given ID.
func (s *Items) Get(ctx context.Context, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return item, nil
}

// Report records a new item on behalf of reporter.
func (s *Items) Report(ctx context.Context, reporter *model.User, in NewItem) (*model.Item, error) {
	in, err := in.Validate()
	if err != nil {
		return nil, err
	}

	item, err := store.SaveItem(ctx, s.db, &model.Item{
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		ReportedBy:  reporter.Username,
		Image:       in.Image,
		UserID:      reporter.ID,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("item reported", "item_id", item.ID, "status", item.Status, "user", reporter.Username, "image", item.Image != nil)
	return item, nil
}

// Delete removes an item and its claims, returning the removed item so the
// caller can clean up its image.
func (s *Items) Delete(ctx context.Context, id int64) (*model.Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.DeleteItem(ctx, s.db, id); err != nil {
		return nil, err
	}
	slog.Info("item deleted", "item_id", id)
	return item, nil
}

// Stats counts items overall and per status.
func (s *Items) Stats(ctx context.Context) (ItemStats, error) {
	var st ItemStats
	var err error
	if st.Total, err = store.CountItems(ctx, s.db); err != nil {
		return st, err
	}
	if st.Lost, err = store.CountItemsByStatus(ctx, s.db, model.ItemStatusLost); err != nil {
		return st, err
	}
	if st.Found, err = store.CountItemsByStatus(ctx, s.db, model.ItemStatusFound); err != nil {
		return st, err
	}
	return st, nil
}
