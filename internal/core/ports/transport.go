package ports

import "context"

// PaginationInfo is the server-reported shape attached to list responses.
type PaginationInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Response is the envelope every producer resolves with. Data carries the
// payload; Success=false with a Message is the API's application-level failure.
type Response[T any] struct {
	Data       T               `json:"data"`
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	Pagination *PaginationInfo `json:"pagination,omitempty"`
}

// Producer is the single asynchronous call a controller wraps. The REST client
// is the usual implementation, but tests substitute plain functions.
type Producer[A, T any] func(ctx context.Context, args A) (*Response[T], error)

// PageProducer fetches one page of a list.
type PageProducer[T any] func(ctx context.Context, page, pageSize int) (*Response[[]T], error)

// TokenProvider supplies the stored bearer credential attached to requests.
// Acquisition and refresh of the credential are out of scope; a provider only
// reads what is already stored.
type TokenProvider interface {
	Token() (string, error)
}
