package httpcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	SetMinDelay(0)
	m.Run()
}

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	return req
}

func TestFetchURLNoCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<table id=\"table_results\"></table>")) //nolint:errcheck // test helper
	}))
	defer server.Close()

	body, err := FetchURL(context.Background(), nil, server.Client(), newRequest(t, server.URL), nil)
	if err != nil {
		t.Fatalf("FetchURL() error = %v", err)
	}
	if !strings.Contains(string(body), "table_results") {
		t.Errorf("FetchURL() body = %q", body)
	}
}

func TestFetchURLNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := FetchURL(context.Background(), nil, server.Client(), newRequest(t, server.URL), nil)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("FetchURL() error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", httpErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (404 is not retried)", got)
	}
}

func TestFetchURLRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok")) //nolint:errcheck // test helper
	}))
	defer server.Close()

	body, err := FetchURL(context.Background(), nil, server.Client(), newRequest(t, server.URL), nil)
	if err != nil {
		t.Fatalf("FetchURL() error = %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestFetchURLCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("markup")) //nolint:errcheck // test helper
	}))
	defer server.Close()

	cache, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath() error = %v", err)
	}
	defer cache.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	for range 3 {
		body, err := FetchURL(ctx, cache, server.Client(), newRequest(t, server.URL+"/search"), nil)
		if err != nil {
			t.Fatalf("FetchURL() error = %v", err)
		}
		if string(body) != "markup" {
			t.Errorf("body = %q, want markup", body)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1", got)
	}

	if _, err := FetchURL(Bypass(ctx), cache, server.Client(), newRequest(t, server.URL+"/search"), nil); err != nil {
		t.Fatalf("FetchURL(bypass) error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("bypass should reach the server, calls = %d", got)
	}
}

func TestFetchURLValidatorSkipsCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("maintenance")) //nolint:errcheck // test helper
	}))
	defer server.Close()

	cache, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath() error = %v", err)
	}
	defer cache.Close() //nolint:errcheck // test cleanup

	reject := func([]byte) bool { return false }
	for range 2 {
		body, err := FetchURLWithValidator(context.Background(), cache, server.Client(), newRequest(t, server.URL), nil, reject)
		if err != nil {
			t.Fatalf("FetchURLWithValidator() error = %v", err)
		}
		if string(body) != "maintenance" {
			t.Errorf("body = %q", body)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2 (invalid responses are not cached)", got)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{&HTTPError{StatusCode: http.StatusBadGateway}, true},
		{&HTTPError{StatusCode: http.StatusForbidden}, false},
		{&HTTPError{StatusCode: http.StatusNotFound}, false},
		{errors.New("connection reset"), true},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestURLToKey(t *testing.T) {
	a := URLToKey("https://ratings.fide.com/incl_search_l.php?search=Ram%2C+Lana")
	b := URLToKey("https://ratings.fide.com/incl_search_l.php?search=Ram%2C+Lana")
	if a != b || len(a) != 64 {
		t.Errorf("URLToKey() = %q, %q; want identical 64-char hashes", a, b)
	}
}
