// Package httptransport provides the default net/http-based
// platform.HTTPTransport implementation and the shared Retry-After parser
// (§4.3).
package httptransport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/metarouter/go-sdk/platform"
)

// Transport is the default platform.HTTPTransport, grounded on the same
// "Config{HTTPClient, Timeout} wraps net/http" shape used across the
// example pack's own HTTP clients.
type Transport struct {
	client *http.Client
}

// New constructs a Transport. If client is nil, a client with no default
// timeout is used — per-request timeouts are applied via ctx instead, so
// PostJSON's timeout parameter always governs.
func New(client *http.Client) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &Transport{client: client}
}

// PostJSON implements platform.HTTPTransport.
func (t *Transport) PostJSON(ctx context.Context, url string, body []byte, timeout time.Duration) (*platform.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &platform.TransportError{Kind: platform.ErrIO, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &platform.TransportError{Kind: platform.ErrIO, Err: err}
	}

	return &platform.Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    respBody,
	}, nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &platform.TransportError{Kind: platform.ErrTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &platform.TransportError{Kind: platform.ErrTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &platform.TransportError{Kind: platform.ErrConnect, Err: err}
	}
	return &platform.TransportError{Kind: platform.ErrIO, Err: err}
}

// ParseRetryAfter accepts a bare decimal-seconds value or an RFC 7231
// HTTP-date and returns the delay in milliseconds, or ok=false if header is
// absent or unparseable (§4.3).
func ParseRetryAfter(headers http.Header) (ms int32, ok bool) {
	raw := headers.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	raw = strings.TrimSpace(raw)

	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			seconds = 0
		}
		return int32(seconds) * 1000, true
	}

	when, err := http.ParseTime(raw)
	if err != nil {
		return 0, false
	}
	delta := time.Until(when)
	if delta < 0 {
		delta = 0
	}
	return int32(delta / time.Millisecond), true
}
