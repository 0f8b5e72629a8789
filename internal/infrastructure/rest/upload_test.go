package rest_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/avatarctic/client-runtime/go/internal/infrastructure/rest"
	"github.com/stretchr/testify/require"
)

func TestUploaderStreamsMultipartForm(t *testing.T) {
	content := strings.Repeat("x", 4096)
	var fileName, fileBody, owner string

	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		owner = r.FormValue("owner")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		fileName = header.Filename
		body, err := io.ReadAll(file)
		require.NoError(t, err)
		fileBody = string(body)
		json.NewEncoder(w).Encode(ports.Response[map[string]string]{
			Data:    map[string]string{"id": "up-1"},
			Success: true,
		})
	}, nil)

	var lastLoaded, lastTotal int64
	uploader := rest.NewUploader(client, "/uploads", "file")
	resp, err := uploader.Upload(context.Background(), ports.UploadFile{
		Name:        "report.txt",
		Size:        int64(len(content)),
		ContentType: "text/plain",
		Reader:      strings.NewReader(content),
	}, map[string]string{"owner": "alice"}, func(loaded, total int64) {
		lastLoaded, lastTotal = loaded, total
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "report.txt", fileName)
	require.Equal(t, content, fileBody)
	require.Equal(t, "alice", owner)
	require.Equal(t, int64(len(content)), lastLoaded)
	require.Equal(t, int64(len(content)), lastTotal)
}

func TestUploaderDefaultsFieldName(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)
		json.NewEncoder(w).Encode(ports.Response[map[string]string]{Success: true})
	}, nil)

	uploader := rest.NewUploader(client, "/uploads", "")
	_, err := uploader.Upload(context.Background(), ports.UploadFile{
		Name:   "a.bin",
		Size:   1,
		Reader: strings.NewReader("z"),
	}, nil, nil)
	require.NoError(t, err)
}

func TestUploaderSurfacesServerRejection(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		json.NewEncoder(w).Encode(ports.Response[map[string]string]{
			Success: false,
			Message: "quota exceeded",
		})
	}, nil)

	uploader := rest.NewUploader(client, "/uploads", "file")
	_, err := uploader.Upload(context.Background(), ports.UploadFile{
		Name:   "big.bin",
		Size:   3,
		Reader: strings.NewReader("abc"),
	}, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "quota exceeded")
}

func TestUploaderCancelledContextAborts(t *testing.T) {
	release := make(chan struct{})
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	}, nil)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uploader := rest.NewUploader(client, "/uploads", "file")
	_, err := uploader.Upload(ctx, ports.UploadFile{
		Name:   "a.bin",
		Size:   1,
		Reader: strings.NewReader("z"),
	}, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}
