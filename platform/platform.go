// Package platform declares the boundary interfaces the delivery pipeline
// consumes but does not implement: HTTP transport, persistent key-value
// storage, device/app context, and host lifecycle signals (spec §6).
// Every host embedding this module supplies concrete implementations; the
// core treats them as opaque beyond the structure documented here.
package platform

import (
	"context"
	"net/http"
	"time"

	"github.com/metarouter/go-sdk/internal/model"
)

// Response is the result of a successful HTTP round trip.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// TransportErrorKind classifies a failed HTTP round trip (§4.3).
type TransportErrorKind int

const (
	ErrTimeout TransportErrorKind = iota
	ErrConnect
	ErrIO
)

func (k TransportErrorKind) String() string {
	switch k {
	case ErrTimeout:
		return "timeout"
	case ErrConnect:
		return "connect"
	default:
		return "io"
	}
}

// TransportError is returned by HTTPTransport.PostJSON when the request
// never produced an HTTP response (connection failure, timeout, I/O
// error).
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport: " + e.Kind.String()
	}
	return "transport: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPTransport performs a single POST of a JSON body and returns the raw
// response, or fails with a TransportError (§4.3). Implementations must
// honor ctx cancellation/timeout.
type HTTPTransport interface {
	PostJSON(ctx context.Context, url string, body []byte, timeout time.Duration) (*Response, error)
}

// KeyValueStore is the persistent key-value interface backing IdentityStore
// (§6). Keys are the fixed "metarouter:*" strings; values are UTF-8
// strings; Delete removes the key entirely rather than setting it empty.
type KeyValueStore interface {
	Get(key string) (value string, ok bool)
	Set(key, value string) error
	Delete(key string) error
}

// DeviceProbe, OSProbe, ScreenProbe, LocaleProbe, NetworkProbe, and
// AppProbe are the individual introspection callbacks a ContextProvider
// composes (see internal/contextcache for the reference implementation
// that fans these out concurrently).
type (
	AppProbe     func(ctx context.Context) (model.AppContext, error)
	DeviceProbe  func(ctx context.Context) (model.DeviceContext, error)
	OSProbe      func(ctx context.Context) (model.OSContext, error)
	ScreenProbe  func(ctx context.Context) (model.ScreenContext, error)
	LocaleProbe  func(ctx context.Context) (string, error)
	TZProbe      func(ctx context.Context) (string, error)
	NetworkProbe func(ctx context.Context) (*model.NetworkContext, error)
)

// ContextProvider supplies an immutable context record per event (§3, §6).
// GetContext is cached by implementations until ClearCache is called or
// (per §3) the advertisingId changes.
type ContextProvider interface {
	GetContext(ctx context.Context, advertisingID string) (model.Context, error)
	ClearCache()
}

// Signal identifies a platform lifecycle transition (§6).
type Signal int

const (
	Foreground Signal = iota
	Background
)

// AppLifecycle is the consumed (not implemented) platform lifecycle
// interface: LifecycleController subscribes a handler, and hosts invoke that
// handler when the app transitions.
type AppLifecycle interface {
	Subscribe(handler func(Signal))
}
