package core

// PageSize is the fixed number of records per list page.
const PageSize = 10

// Page is an offset/limit window. A zero Limit means no limit.
type Page struct {
	Offset int
	Limit  int
}

// PageNumber returns the window for a 1-based page number. Pages below 1
// are clamped to the first page.
func PageNumber(page int) Page {
	if page < 1 {
		page = 1
	}
	return Page{Offset: (page - 1) * PageSize, Limit: PageSize}
}

// TotalPages is ceil(total / PageSize).
func TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}
