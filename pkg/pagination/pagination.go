package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Calculate clamps page and limit to sane values and returns the offset.
func Calculate(page, limit int) (offset, clamped int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return (page - 1) * limit, limit
}

type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func NewMeta(page, limit int, total int64) Meta {
	if page < 1 {
		page = 1
	}
	pages := (total + int64(limit) - 1) / int64(limit)
	return Meta{Page: page, Limit: limit, Total: total, Pages: pages}
}
