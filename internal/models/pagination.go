package models

const (
	// DefaultPageSize applies when a list request omits limit.
	DefaultPageSize = 10
	// MaxPageSize caps limit on every list endpoint.
	MaxPageSize = 100
	// MaxPage caps page so the SQL offset cannot overflow.
	MaxPage = 1_000_000
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination builds metadata for a page of a result set of total rows.
func NewPagination(page, limit, total int) *Pagination {
	page, limit, _ = NormalizePage(page, limit)
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// NormalizePage clamps page/limit to sane values and returns the SQL offset.
func NormalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit, (page - 1) * limit
}
