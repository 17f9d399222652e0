package utils

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// PageOptions carries page/limit/sort parameters for list endpoints. A zero
// value normalizes to page 1, limit 10 and the caller's default sort, so
// paging stays deterministic even when the client sends nothing.
type PageOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

func (o PageOptions) Normalized(defaultSortBy string) PageOptions {
	if o.Page < 1 {
		o.Page = defaultPage
	}
	if o.Limit < 1 {
		o.Limit = defaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	if o.SortBy == "" {
		o.SortBy = defaultSortBy
	}
	if o.SortOrder != "desc" {
		o.SortOrder = "asc"
	}
	return o
}

func (o PageOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// PageMeta is echoed back with every paginated response.
type PageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}
