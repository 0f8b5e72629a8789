package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/avatarctic/client-runtime/go/internal/core/ports"
)

// Uploader streams multipart transfers through the client. The body is piped
// rather than buffered so progress reflects bytes actually handed to the
// transport.
type Uploader struct {
	client    *Client
	path      string
	fieldName string
}

// NewUploader targets path with the given form field name for the file part.
func NewUploader(client *Client, path, fieldName string) *Uploader {
	if fieldName == "" {
		fieldName = "file"
	}
	return &Uploader{client: client, path: path, fieldName: fieldName}
}

// Upload implements ports.Uploader. Metadata entries become plain form
// fields. Cancelling ctx aborts the transfer mid-stream.
func (u *Uploader) Upload(ctx context.Context, file ports.UploadFile, metadata map[string]string, progress ports.ProgressFunc) (*ports.Response[json.RawMessage], error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeForm(form, u.fieldName, file, metadata, progress)
		if cerr := form.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.client.baseURL+u.path, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	u.client.decorate(req)

	resp, err := u.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, raw)
	}
	return decode[json.RawMessage](raw)
}

func writeForm(form *multipart.Writer, fieldName string, file ports.UploadFile, metadata map[string]string, progress ports.ProgressFunc) error {
	for k, v := range metadata {
		if err := form.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	part, err := form.CreateFormFile(fieldName, file.Name)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	_, err = io.Copy(part, &progressReader{r: file.Reader, total: file.Size, progress: progress})
	if err != nil {
		return fmt.Errorf("failed to stream file: %w", err)
	}
	return nil
}

// progressReader counts bytes as the multipart writer drains the file.
type progressReader struct {
	r        io.Reader
	loaded   int64
	total    int64
	progress ports.ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.loaded += int64(n)
		if p.progress != nil {
			p.progress(p.loaded, p.total)
		}
	}
	return n, err
}

var _ ports.Uploader = (*Uploader)(nil)
