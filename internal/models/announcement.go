package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// AnnouncementID holds a server-assigned integer id or a locally generated
// one. Both are kept in their decimal string form.
type AnnouncementID string

func (id *AnnouncementID) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("failed to decode announcement id: %w", err)
		}
		*id = AnnouncementID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("failed to decode announcement id: %w", err)
	}
	*id = AnnouncementID(n.String())
	return nil
}

func (id AnnouncementID) String() string {
	return string(id)
}

type Announcement struct {
	ID        AnnouncementID `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Category  string         `json:"category"`
	IsPinned  bool           `json:"is_pinned"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// AnnouncementInput is the writable part of an announcement. Nil fields are
// left unchanged by local merges.
type AnnouncementInput struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	Category *string `json:"category,omitempty"`
	IsPinned *bool   `json:"is_pinned,omitempty"`
}

// Apply merges the non-nil fields of in into a.
func (in AnnouncementInput) Apply(a *Announcement) {
	if in.Title != nil {
		a.Title = *in.Title
	}
	if in.Content != nil {
		a.Content = *in.Content
	}
	if in.Category != nil {
		a.Category = *in.Category
	}
	if in.IsPinned != nil {
		a.IsPinned = *in.IsPinned
	}
}

type DateRange string

const (
	DateRangeAll   DateRange = "all"
	DateRangeWeek  DateRange = "week"
	DateRangeMonth DateRange = "month"
	DateRangeYear  DateRange = "year"
)

// MaxAge returns the window length and false for "all" or unknown ranges.
func (r DateRange) MaxAge() (time.Duration, bool) {
	const day = 24 * time.Hour
	switch r {
	case DateRangeWeek:
		return 7 * day, true
	case DateRangeMonth:
		return 30 * day, true
	case DateRangeYear:
		return 365 * day, true
	default:
		return 0, false
	}
}

func (r DateRange) Valid() bool {
	switch r {
	case DateRangeAll, DateRangeWeek, DateRangeMonth, DateRangeYear, "":
		return true
	}
	return false
}

const CategoryAll = "all"

type Filter struct {
	Search    string    `json:"search"`
	Category  string    `json:"category"`
	DateRange DateRange `json:"date_range"`
}

func DefaultFilter() Filter {
	return Filter{Category: CategoryAll, DateRange: DateRangeAll}
}
