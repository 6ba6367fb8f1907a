package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/model"
)

func mustSaveUser(t *testing.T, q *sqlx.DB, u *model.User) *model.User {
	t.Helper()
	saved, err := SaveUser(context.Background(), q, u)
	if err != nil {
		t.Fatalf("SaveUser(%s): %v", u.Username, err)
	}
	return saved
}

func mustSaveItem(t *testing.T, q *sqlx.DB, item *model.Item) *model.Item {
	t.Helper()
	saved, err := SaveItem(context.Background(), q, item)
	if err != nil {
		t.Fatalf("SaveItem(%s): %v", item.Name, err)
	}
	return saved
}

func TestTimeOrNow(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	if got := timeOrNow("items", 1, "date_reported", sql.NullTime{Time: fixed, Valid: true}); !got.Equal(fixed) {
		t.Errorf("expected %v, got %v", fixed, got)
	}

	before := time.Now().UTC()
	got := timeOrNow("items", 1, "date_reported", sql.NullTime{})
	if got.Before(before) {
		t.Errorf("expected fallback to now, got %v", got)
	}
}

func TestLikePatternEscapes(t *testing.T) {
	tests := map[string]string{
		"Backpack": "%backpack%",
		"100%":     `%100\%%`,
		"a_b":      `%a\_b%`,
		`c:\x`:     `%c:\\x%`,
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
