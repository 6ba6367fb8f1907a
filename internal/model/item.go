package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Item is a lost or found object report.
type Item struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	ReportedBy   string    `json:"reportedBy"`
	Image        *string   `json:"image"`
	UserID       int64     `json:"userId"`
	DateReported time.Time `json:"dateReported"`
}

// Item statuses.
const (
	ItemStatusLost  = "Lost"
	ItemStatusFound = "Found"
)

// NormalizeItemStatus maps a case-insensitive status to Lost or Found.
func NormalizeItemStatus(s string) (string, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, ItemStatusLost):
		return ItemStatusLost, true
	case strings.EqualFold(s, ItemStatusFound):
		return ItemStatusFound, true
	}
	return "", false
}

// MarshalJSON adds the "desc" alias the web client reads.
func (i Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return json.Marshal(struct {
		plain
		Desc string `json:"desc"`
	}{plain(i), i.Description})
}
