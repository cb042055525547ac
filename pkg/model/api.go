package model

// Envelope is the JSON shape of every status API response. Exactly one
// of Data and Error is set; Pagination accompanies list payloads.
type Envelope struct {
	RequestID  string      `json:"request_id"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error,omitempty"`
}

// Pagination describes the window a list response covers.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPagination builds the metadata for a page holding count of total
// items under opts.
func NewPagination(total int, opts ListOptions, count int) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+count < total,
	}
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListOptions bounds and filters list queries.
type ListOptions struct {
	Limit  int
	Offset int
	State  string // restrict to one lifecycle state when non-empty
}

// DefaultListOptions returns the first page at the default size.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: defaultListLimit}
}

// Normalize forces the options into the supported window.
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}
