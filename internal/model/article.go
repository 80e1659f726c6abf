// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"strings"
	"time"
)

// Article is an encyclopedia article, either fetched live from Wikipedia or
// saved under an owning user.
//
// LIFECYCLE:
// The wiki client builds Articles without ID or UserID. The repository assigns
// ID and DateDownloaded when the article is saved; UserID is set once at save
// time and never reassigned afterwards.
//
// Optional fields are plain strings with `omitempty` rather than pointers:
// an absent thumbnail and an empty one mean the same thing to the frontend.
// DateDownloaded is the exception: it is a pointer so that live articles
// (never saved) omit it instead of rendering the zero time.
type Article struct {
	ID             string     `json:"id,omitempty"             db:"id"`
	UserID         string     `json:"userId,omitempty"         db:"user_id"`
	Title          string     `json:"title"                    db:"title"`
	Content        string     `json:"content"                  db:"content"`
	ImageURL       string     `json:"imageUrl,omitempty"       db:"image_url"`
	PageID         string     `json:"pageId,omitempty"         db:"page_id"`
	WikiURL        string     `json:"wikiUrl,omitempty"        db:"wiki_url"`
	DateDownloaded *time.Time `json:"dateDownloaded,omitempty" db:"date_downloaded"`
}

// WikiSearchResult is one hit from a Wikipedia full-text search. It is never stored.
type WikiSearchResult struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"` // HTML snippet with <span class="searchmatch"> highlights
	PageID  string `json:"pageId"`
	URL     string `json:"url"`
}

// NormalizeImageURL turns a protocol-relative URL ("//upload.wikimedia.org/x.jpg")
// into an explicit https URL. Anything else is returned unchanged.
func NormalizeImageURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}
