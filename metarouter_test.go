package metarouter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/metarouter/go-sdk/platform"
)

func TestOptionsValidateRejectsEmptyWriteKey(t *testing.T) {
	opts := Options{WriteKey: "  ", IngestionHost: "https://example.com"}
	err := opts.validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Kind != EmptyWriteKey {
		t.Fatalf("expected EmptyWriteKey ConfigError, got %v", err)
	}
}

func TestOptionsValidateRejectsMalformedHost(t *testing.T) {
	opts := Options{WriteKey: "wk", IngestionHost: "not a url"}
	err := opts.validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Kind != InvalidHost {
		t.Fatalf("expected InvalidHost ConfigError, got %v", err)
	}
}

func TestOptionsValidateRejectsTrailingSlashHost(t *testing.T) {
	opts := Options{WriteKey: "wk", IngestionHost: "https://example.com/"}
	err := opts.validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Kind != TrailingSlashHost {
		t.Fatalf("expected TrailingSlashHost ConfigError, got %v", err)
	}
}

func TestOptionsValidateAcceptsWellFormedOptions(t *testing.T) {
	opts := Options{WriteKey: "wk", IngestionHost: "https://example.com"}
	if err := opts.validate(); err != nil {
		t.Fatalf("expected valid options, got %v", err)
	}
}

func TestOptionsNormalizedGatesLoggerLevelOnDebug(t *testing.T) {
	quiet := Options{WriteKey: "wk", IngestionHost: "https://example.com"}.normalized()
	if quiet.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug-level logging disabled by default")
	}

	loud := Options{WriteKey: "wk", IngestionHost: "https://example.com", Debug: true}.normalized()
	if !loud.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug-level logging enabled when Debug is true")
	}
}

func TestOptionsNormalizedAppliesDefaults(t *testing.T) {
	opts := Options{WriteKey: "wk", IngestionHost: " https://example.com "}
	n := opts.normalized()
	if n.IngestionHost != "https://example.com" {
		t.Errorf("expected trimmed host, got %q", n.IngestionHost)
	}
	if n.FlushIntervalSeconds != 10 {
		t.Errorf("expected default flush interval 10, got %d", n.FlushIntervalSeconds)
	}
	if n.MaxQueueEvents != 2000 {
		t.Errorf("expected default max queue events 2000, got %d", n.MaxQueueEvents)
	}
	if n.HTTPTransport == nil {
		t.Error("expected a default HTTPTransport")
	}
	if n.Logger == nil {
		t.Error("expected a default Logger")
	}
}

type stubTransport struct {
	mu    sync.Mutex
	calls int
}

func (s *stubTransport) PostJSON(ctx context.Context, url string, body []byte, timeout time.Duration) (*platform.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &platform.Response{Status: 200}, nil
}

func (s *stubTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// End-to-end: New returns immediately, calls made before the background
// pipeline is Ready are buffered by the Proxy, and once bound they are
// delivered through to the transport.
func TestEndToEndTrackIsDelivered(t *testing.T) {
	transport := &stubTransport{}
	a, err := New(Options{
		WriteKey:      "wk",
		IngestionHost: "https://example.com",
		HTTPTransport: transport,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a.Track("signed_up", Fields{"plan": StringValue("pro")})
	a.Flush()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && transport.callCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if transport.callCount() == 0 {
		t.Fatal("expected the buffered Track call to eventually be delivered")
	}
}

func TestGetDebugInfoRightAfterNewDoesNotPanic(t *testing.T) {
	transport := &stubTransport{}
	a, err := New(Options{
		WriteKey:      "wk",
		IngestionHost: "https://example.com",
		HTTPTransport: transport,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info := a.GetDebugInfo()
	_ = info // may be zero or populated depending on scheduling; just must not panic
}

func TestValueMarshalsForPublicFields(t *testing.T) {
	f := Fields{"n": IntValue(3), "s": StringValue("x")}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["n"].(float64) != 3 || decoded["s"] != "x" {
		t.Fatalf("unexpected decoded fields: %v", decoded)
	}
}
