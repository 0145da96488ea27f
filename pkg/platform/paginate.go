package platform

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Page is the result of the client-side search fallback.
type Page struct {
	Items      []json.RawMessage `json:"items"`
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalCount int               `json:"totalCount"`
	TotalPages int               `json:"totalPages"`
}

// Items returns the elements of the JSON array at path in body, or of body
// itself when path is empty.
func Items(body json.RawMessage, path string) []json.RawMessage {
	res := gjson.ParseBytes(body)
	if path != "" {
		res = res.Get(path)
	}
	if !res.IsArray() {
		return nil
	}
	arr := res.Array()
	out := make([]json.RawMessage, 0, len(arr))
	for _, it := range arr {
		out = append(out, json.RawMessage(it.Raw))
	}
	return out
}

// FilterByText keeps the items whose string value at any of fields contains
// query, case-insensitively. An empty query keeps everything.
func FilterByText(items []json.RawMessage, query string, fields ...string) []json.RawMessage {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		for _, f := range fields {
			v := gjson.GetBytes(it, f)
			if v.Type == gjson.String && strings.Contains(strings.ToLower(v.String()), q) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// Paginate slices the page window out of an already filtered set.
func Paginate(items []json.RawMessage, page, perPage int) Page {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	total := len(items)
	p := Page{
		Items:      []json.RawMessage{},
		Page:       page,
		PerPage:    perPage,
		TotalCount: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	// Compare page numbers first; (page-1)*perPage overflows for huge pages.
	if page-1 >= p.TotalPages {
		return p
	}
	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}
	p.Items = items[start:end]
	return p
}
