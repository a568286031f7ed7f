package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// Page size bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned when a cursor does not decode.
var ErrInvalidCursor = errors.New("invalid cursor")

// PageRequest carries cursor pagination parameters from the query string.
type PageRequest struct {
	// Cursor is an opaque value from a previous page's NextCursor.
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit"  validate:"omitempty,gte=1,lte=100"`
}

// GetLimit returns the limit with defaults applied.
func (p *PageRequest) GetLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}

	return min(p.Limit, MaxLimit)
}

// After returns the sort key the page starts after, or "" for the first page.
func (p *PageRequest) After() (string, error) {
	if p.Cursor == "" {
		return "", nil
	}

	c, err := DecodeCursor(p.Cursor)
	if err != nil {
		return "", err
	}

	return c.After, nil
}

// Page is one page of a list sorted by a unique string key.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// NewPage trims items to limit. Pass limit+1 items so a following page can
// be detected; key yields the sort key the next cursor resumes after.
func NewPage[T any](items []T, limit int, key func(T) string) *Page[T] {
	if items == nil {
		items = []T{}
	}

	page := &Page[T]{Items: items}

	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true

		if limit > 0 {
			page.NextCursor = EncodeCursor(&Cursor{After: key(page.Items[limit-1])})
		}
	}

	return page
}

// Cursor is the decoded form of a page cursor.
type Cursor struct {
	After string `json:"a"`
}

// EncodeCursor encodes c as URL-safe base64 JSON.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}

	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeCursor reverses EncodeCursor.
func DecodeCursor(encoded string) (*Cursor, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ErrInvalidCursor
	}

	return &c, nil
}
