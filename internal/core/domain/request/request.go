package request

// State is the lifecycle snapshot a controller exposes to its consumer.
// Data is nil until the first successful fetch; Err holds the terminal error
// of the most recent attempt chain. Snapshots are copies and never shared
// between controller instances.
type State[T any] struct {
	Data    *T
	Loading bool
	Err     error
}

// Pagination tracks the page-oriented view of a list fetch.
type Pagination struct {
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// HasNext reports whether a further page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// HasPrev reports whether an earlier page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// UploadState is published on every progress tick of a transfer.
type UploadState struct {
	Loaded     int64
	Total      int64
	Percentage int
	Uploading  bool
	Err        error
}
