package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/maauso/wanzami-api/internal/storage"
)

// Static errors for transfers.
var (
	// ErrGrantExpired is returned when a grant expired before the transfer started.
	ErrGrantExpired = errors.New("upload: write grant expired")
	// ErrServerError is returned when the object store answers with a 5xx status.
	ErrServerError = errors.New("upload: server error")
	// ErrRequestFailed is returned for any other non-2xx answer.
	ErrRequestFailed = errors.New("upload: request failed")
)

// Transferer sends one object body to the destination of a grant.
type Transferer interface {
	// Put sends size bytes read from body. onProgress receives the number of
	// bytes handed to the transport so far.
	Put(ctx context.Context, grant storage.Grant, body io.Reader, size int64, onProgress func(sent int64)) error
}

// HTTPTransferer uploads bodies with a single HTTP PUT to the grant URL.
type HTTPTransferer struct {
	httpClient *http.Client
	now        func() time.Time
}

// TransferOption configures an HTTPTransferer.
type TransferOption func(*HTTPTransferer)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) TransferOption {
	return func(t *HTTPTransferer) {
		t.httpClient = c
	}
}

// WithClock sets the clock used for grant expiry checks.
func WithClock(now func() time.Time) TransferOption {
	return func(t *HTTPTransferer) {
		t.now = now
	}
}

// NewHTTPTransferer creates an HTTPTransferer.
// The client has no overall timeout; the Worker bounds each transfer.
func NewHTTPTransferer(opts ...TransferOption) *HTTPTransferer {
	t := &HTTPTransferer{
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Put implements Transferer.
func (t *HTTPTransferer) Put(ctx context.Context, grant storage.Grant, body io.Reader, size int64, onProgress func(sent int64)) error {
	if grant.Expired(t.now()) {
		return ErrGrantExpired
	}

	if onProgress != nil {
		body = &progressReader{r: body, onRead: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.URL, body)
	if err != nil {
		return fmt.Errorf("upload: create request: %w", err)
	}
	req.ContentLength = size
	if grant.ContentType != "" {
		req.Header.Set("Content-Type", grant.ContentType)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(msg))
	}
	return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(msg))
}

// progressReader reports the running count of bytes read by the transport.
type progressReader struct {
	r      io.Reader
	sent   int64
	onRead func(sent int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.onRead(p.sent)
	}
	return n, err
}
