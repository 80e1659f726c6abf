package wiki

import (
	"sort"

	"github.com/goccy/go-json"
)

// Shapes of the format=json (formatversion 1) query API responses. Only the
// fields we read are declared.

type searchResponse struct {
	Query struct {
		Search []searchHit `json:"search"`
	} `json:"query"`
}

type searchHit struct {
	Title   string `json:"title"`
	PageID  int64  `json:"pageid"`
	Snippet string `json:"snippet"`
}

type randomResponse struct {
	Query struct {
		Random []struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"random"`
	} `json:"query"`
}

type pagesResponse struct {
	Query struct {
		Pages map[string]page `json:"pages"`
	} `json:"query"`
}

type page struct {
	PageID    int64  `json:"pageid"`
	Title     string `json:"title"`
	Extract   string `json:"extract"`
	FullURL   string `json:"fullurl"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	// Present (as "") on unknown or malformed titles.
	Missing json.RawMessage `json:"missing"`
	Invalid json.RawMessage `json:"invalid"`
}

func (p page) exists() bool {
	return p.PageID > 0 && len(p.Missing) == 0 && len(p.Invalid) == 0
}

// page returns the first existing page, by key order. A single-title query
// yields at most one entry.
func (r pagesResponse) page() (page, bool) {
	keys := make([]string, 0, len(r.Query.Pages))
	for k := range r.Query.Pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if p := r.Query.Pages[k]; p.exists() {
			return p, true
		}
	}
	return page{}, false
}
