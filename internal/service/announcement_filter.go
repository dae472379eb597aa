package service

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gosimple/slug"

	"github.com/RubachokBoss/major-recommender/internal/models"
)

// FilterAnnouncements returns the records matching every predicate of f,
// in their original order. It does not modify list.
func FilterAnnouncements(list []models.Announcement, f models.Filter, now time.Time) []models.Announcement {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	category := ""
	if c := strings.TrimSpace(f.Category); c != "" && !strings.EqualFold(c, models.CategoryAll) {
		category = categoryKey(c)
	}
	maxAge, bounded := f.DateRange.MaxAge()

	out := make([]models.Announcement, 0, len(list))
	for _, a := range list {
		if search != "" && !matchesSearch(a, search) {
			continue
		}
		if category != "" && categoryKey(a.Category) != category {
			continue
		}
		if bounded && now.Sub(a.CreatedAt) > maxAge {
			continue
		}
		out = append(out, a)
	}
	return out
}

func categoryKey(c string) string {
	if key := slug.Make(c); key != "" {
		return key
	}
	return strings.ToLower(strings.TrimSpace(c))
}

func matchesSearch(a models.Announcement, needle string) bool {
	if strings.Contains(strings.ToLower(a.Title), needle) {
		return true
	}
	// Raw content first: a bare "<" in plain text is not markup.
	if strings.Contains(strings.ToLower(a.Content), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(PlainText(a.Content)), needle)
}

// PlainText strips markup from an HTML body. Plain strings are returned as is.
func PlainText(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
