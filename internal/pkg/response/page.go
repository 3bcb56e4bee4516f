package response

// PageResponse wraps one page of a directory listing. Total counts every
// match of the filter, not just this page.
type PageResponse[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// NewPageResponse builds a page. A nil items slice is sent as [].
func NewPageResponse[T any](items []T, page, pageSize, total int) PageResponse[T] {
	if items == nil {
		items = []T{}
	}
	return PageResponse[T]{Items: items, Page: page, PageSize: pageSize, Total: total}
}
