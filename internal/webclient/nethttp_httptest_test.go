package webclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/veritas/internal/logging"
	"github.com/raysh454/veritas/internal/webclient"
)

func postJSON(url string, body string) *webclient.Request {
	hdrs := http.Header{}
	hdrs.Set("Content-Type", "application/json")
	hdrs.Set("x-goog-api-key", "test-key")
	return &webclient.Request{Method: http.MethodPost, URL: url, Headers: hdrs, Body: []byte(body)}
}

// ─── Do: JSON POST round-trip via httptest ─────────────────────────────

func TestNetHTTPClient_Do_PostsJSONAndReturnsBody(t *testing.T) {
	t.Parallel()
	var gotMethod, gotType, gotKey, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer ts.Close()

	client, err := webclient.NewNetHTTPClient(webclient.Config{}, logging.NewNop(), ts.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	defer client.Close()

	resp, err := client.Do(context.Background(), postJSON(ts.URL+"/v1beta/models/m:generateContent", `{"contents":[]}`))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotType != "application/json" || gotKey != "test-key" {
		t.Errorf("headers not forwarded: content-type=%q key=%q", gotType, gotKey)
	}
	if gotBody != `{"contents":[]}` {
		t.Errorf("body = %q", gotBody)
	}
	if !resp.OK() || string(resp.Body) != `{"candidates":[]}` {
		t.Errorf("resp = %d %q", resp.StatusCode, resp.Body)
	}
	if resp.Headers.Get("Content-Type") != "application/json" {
		t.Errorf("response headers not returned: %v", resp.Headers)
	}
}

func TestNetHTTPClient_Do_PropagatesStatusCode(t *testing.T) {
	t.Parallel()
	codes := []int{http.StatusBadRequest, http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable}

	for _, code := range codes {
		code := code
		t.Run(http.StatusText(code), func(t *testing.T) {
			t.Parallel()
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(code)
				_, _ = io.WriteString(w, `{"error":{}}`)
			}))
			defer ts.Close()

			client, err := webclient.NewNetHTTPClient(webclient.Config{}, logging.NewNop(), ts.Client())
			if err != nil {
				t.Fatalf("NewNetHTTPClient: %v", err)
			}
			defer client.Close()

			resp, err := client.Do(context.Background(), postJSON(ts.URL, "{}"))
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if resp.StatusCode != code || resp.OK() {
				t.Errorf("status = %d ok=%v, want %d", resp.StatusCode, resp.OK(), code)
			}
		})
	}
}

func TestNetHTTPClient_Do_NilRequest_ReturnsError(t *testing.T) {
	t.Parallel()
	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, logging.NewNop(), nil)
	defer client.Close()

	if _, err := client.Do(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil request")
	}
}

func TestNetHTTPClient_Do_ConnectionRefused_ReturnsError(t *testing.T) {
	t.Parallel()
	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, logging.NewNop(), &http.Client{Timeout: time.Second})
	defer client.Close()

	if _, err := client.Do(context.Background(), postJSON("http://127.0.0.1:1", "{}")); err == nil {
		t.Fatal("expected error for connection refused")
	}
}

func TestNetHTTPClient_Do_ContextCanceled_ReturnsError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, logging.NewNop(), ts.Client())
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Do(ctx, postJSON(ts.URL, "{}"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// ─── Limits and defaults ──────────────────────────────────────────────

func TestNetHTTPClient_Do_BodyOverLimit_ReturnsError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("Y", 64))
	}))
	defer ts.Close()

	client, _ := webclient.NewNetHTTPClient(webclient.Config{MaxResponseBytes: 32}, logging.NewNop(), ts.Client())
	defer client.Close()

	_, err := client.Do(context.Background(), postJSON(ts.URL, "{}"))
	if !errors.Is(err, webclient.ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
}

func TestNetHTTPClient_Do_BodyAtLimit_Succeeds(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("Y", 32))
	}))
	defer ts.Close()

	client, _ := webclient.NewNetHTTPClient(webclient.Config{MaxResponseBytes: 32}, logging.NewNop(), ts.Client())
	defer client.Close()

	resp, err := client.Do(context.Background(), postJSON(ts.URL, "{}"))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(resp.Body) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(resp.Body))
	}
}

func TestNetHTTPClient_Do_SetsUserAgent(t *testing.T) {
	t.Parallel()
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	client, _ := webclient.NewNetHTTPClient(webclient.Config{UserAgent: "veritas-test"}, logging.NewNop(), ts.Client())
	defer client.Close()

	if _, err := client.Do(context.Background(), postJSON(ts.URL, "{}")); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "veritas-test" {
		t.Errorf("expected user agent forwarded, got %q", got)
	}
}

func TestNewNetHTTPClient_DefaultTimeout(t *testing.T) {
	t.Parallel()
	if _, err := webclient.NewNetHTTPClient(webclient.Config{}, nil, nil); err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	if _, err := webclient.NewNetHTTPClient(webclient.Config{MaxResponseBytes: -1}, nil, nil); err == nil {
		t.Fatal("expected error for negative limit")
	}
}
