package ports

import (
	"context"
	"encoding/json"
	"io"
)

// UploadFile describes one file to transfer. Size and ContentType come from
// the UI collaborator that selected the file.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// ProgressFunc receives byte counts as the transport reports them.
type ProgressFunc func(loaded, total int64)

// Uploader performs a multipart transfer. Cancellation goes through ctx.
type Uploader interface {
	Upload(ctx context.Context, file UploadFile, metadata map[string]string, progress ProgressFunc) (*Response[json.RawMessage], error)
}
