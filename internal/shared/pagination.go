package shared

// Page bounds a listing query.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps limit into [1, max] (def when unset) and offset to >= 0.
func NewPage(limit, offset, def, max int) Page {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// Listing is a page of items plus the unpaged total.
type Listing[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}
