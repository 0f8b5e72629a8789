package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/avatarctic/client-runtime/go/internal/core/domain/request"
	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// DefaultMaxUploadSize bounds uploads when an UploadConfig leaves MaxSize unset.
const DefaultMaxUploadSize = 50 * 1024 * 1024

// Validation errors. They are surfaced through state and OnError before any
// transfer is attempted; callers can branch on them with errors.Is.
var (
	ErrFileTooLarge = errors.New("file exceeds maximum size")
	ErrFileType     = errors.New("file type not allowed")
)

// UploadConfig groups the knobs of an Upload controller.
type UploadConfig struct {
	Name    string
	MaxSize int64
	// AllowedTypes, when non-empty, is the content-type allow-list.
	AllowedTypes []string
	OnSuccess    func(data json.RawMessage)
	OnError      func(err error)
	Logger       *logrus.Logger
}

// Upload validates a file, tracks transfer progress, and exposes the one true
// abort in this runtime: Cancel stops the transfer at the network level.
type Upload struct {
	uploader ports.Uploader
	cfg      UploadConfig

	life   lifecycle
	mu     sync.Mutex
	state  request.UploadState
	cancel context.CancelFunc
}

// NewUpload creates an idle upload controller. cfg may be nil.
func NewUpload(uploader ports.Uploader, cfg *UploadConfig) *Upload {
	u := &Upload{uploader: uploader}
	if cfg != nil {
		u.cfg = *cfg
	}
	if u.cfg.Name == "" {
		u.cfg.Name = "upload"
	}
	if u.cfg.MaxSize <= 0 {
		u.cfg.MaxSize = DefaultMaxUploadSize
	}
	return u
}

// Upload validates the file and, if it passes, transfers it as multipart form
// data. Validation failures short-circuit: no network call happens. Blocks
// until the transfer resolves; progress snapshots are visible through State
// while it runs.
func (u *Upload) Upload(ctx context.Context, file ports.UploadFile, metadata map[string]string) (json.RawMessage, error) {
	if err := u.validate(file); err != nil {
		u.mu.Lock()
		u.state = request.UploadState{Err: err}
		u.mu.Unlock()
		requestsTotal.WithLabelValues(u.cfg.Name, "invalid").Inc()
		if u.cfg.OnError != nil {
			u.cfg.OnError(err)
		}
		return nil, err
	}

	gen := u.life.next()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u.mu.Lock()
	u.cancel = cancel
	u.state = request.UploadState{Total: file.Size, Uploading: true}
	u.mu.Unlock()

	resp, err := u.uploader.Upload(ctx, file, metadata, func(loaded, total int64) {
		u.commit(gen, func(st *request.UploadState) {
			st.Loaded = loaded
			st.Total = total
			st.Percentage = percentage(loaded, total)
		})
	})
	if err == nil {
		err = envelopeError(resp)
	}
	if err != nil {
		u.commit(gen, func(st *request.UploadState) {
			st.Err = err
			st.Uploading = false
		})
		requestsTotal.WithLabelValues(u.cfg.Name, "error").Inc()
		if u.cfg.Logger != nil {
			u.cfg.Logger.WithFields(logrus.Fields{"controller": u.cfg.Name, "file": file.Name}).WithError(err).Warn("upload failed")
		}
		if u.cfg.OnError != nil && u.life.alive(gen) {
			u.cfg.OnError(err)
		}
		return nil, err
	}

	u.commit(gen, func(st *request.UploadState) {
		st.Loaded = st.Total
		st.Percentage = 100
		st.Uploading = false
		st.Err = nil
	})
	requestsTotal.WithLabelValues(u.cfg.Name, "success").Inc()
	uploadBytesTotal.Add(float64(file.Size))
	if u.cfg.OnSuccess != nil && u.life.alive(gen) {
		u.cfg.OnSuccess(resp.Data)
	}
	return resp.Data, nil
}

// Cancel aborts the in-flight transfer and clears the uploading flag
// immediately; the aborted call then resolves with an error.
func (u *Upload) Cancel() {
	u.mu.Lock()
	cancel := u.cancel
	u.state.Uploading = false
	u.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset returns all upload state to its initial zeros.
func (u *Upload) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = request.UploadState{}
}

// State returns a snapshot of the transfer progress.
func (u *Upload) State() request.UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Close discards pending progress and results.
func (u *Upload) Close() {
	u.Cancel()
	u.life.close()
}

func (u *Upload) validate(file ports.UploadFile) error {
	if file.Size > u.cfg.MaxSize {
		return fmt.Errorf("%w: %d bytes over limit %d", ErrFileTooLarge, file.Size, u.cfg.MaxSize)
	}
	if len(u.cfg.AllowedTypes) > 0 {
		allowed := false
		for _, t := range u.cfg.AllowedTypes {
			if t == file.ContentType {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s", ErrFileType, file.ContentType)
		}
	}
	return nil
}

func (u *Upload) commit(gen uint64, fn func(*request.UploadState)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.life.alive(gen) {
		return
	}
	fn(&u.state)
}

func percentage(loaded, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(loaded) / float64(total) * 100))
}
