package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/raysh454/veritas/internal/analysis"
	"github.com/raysh454/veritas/internal/composer"
	"github.com/raysh454/veritas/internal/metadata"
	"github.com/raysh454/veritas/internal/model"
	"github.com/raysh454/veritas/internal/testutil"
	"github.com/raysh454/veritas/internal/webclient"
)

const tamperedResult = `{"verdict":"Tampered","confidence":87,"summary":"Edited receipt.","evidence":[{"feature":"Font","description":"Total uses a different typeface.","reasoning":"Kerning differs from the rest of the receipt.","boundingBox":[0.1,0.2,0.3,0.4]}]}`

// envelope wraps model output text in a generateContent response body.
func envelope(t *testing.T, text string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return string(b)
}

func testRequest() *composer.Request {
	rec := metadata.NewRecord(metadata.Entry{Key: "Make", Value: "Acme"})
	return composer.Compose([]byte{0xFF, 0xD8, 0xFF, 0xD9}, "image/jpeg", rec)
}

func newClient(wc webclient.WebClient, key string) (*analysis.Client, *testutil.DummyLogger) {
	logger := testutil.NewDummyLogger()
	cfg := analysis.DefaultConfig()
	cfg.APIKey = key
	cfg.RetryDelay = time.Millisecond
	return analysis.NewClient(cfg, wc, logger), logger
}

func assertAnalysisError(t *testing.T, err error, reason string) {
	t.Helper()
	var aerr *analysis.AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected *AnalysisError, got %T (%v)", err, err)
	}
	if aerr.Reason != reason {
		t.Errorf("reason = %q, want %q (%s)", aerr.Reason, reason, aerr.Detail())
	}
	if err.Error() != analysis.FailureMessage {
		t.Errorf("user message = %q", err.Error())
	}
}

// ─── Credentials ───────────────────────────────────────────────────────

func TestAnalyze_MissingKeyFailsBeforeNetwork(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{}
	client, _ := newClient(wc, "  ")

	_, err := client.Analyze(context.Background(), testRequest())

	var cerr *analysis.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConfigurationError, got %T (%v)", err, err)
	}
	if wc.Calls() != 0 {
		t.Errorf("expected no requests, got %d", wc.Calls())
	}
	if err := client.CheckCredentials(); err == nil {
		t.Error("expected CheckCredentials to fail")
	}
}

// ─── Success path over real HTTP ───────────────────────────────────────

func TestAnalyze_ValidResponse(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, envelope(t, tamperedResult))
	}))
	defer ts.Close()

	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, nil, ts.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	cfg := analysis.DefaultConfig()
	cfg.APIKey = "secret"
	cfg.BaseURL = ts.URL + "/v1beta/"
	client := analysis.NewClient(cfg, wc, nil)

	result, err := client.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := &model.AnalysisResult{
		Verdict:    model.VerdictTampered,
		Confidence: 87,
		Summary:    "Edited receipt.",
		Evidence: []model.EvidencePoint{{
			Feature:     "Font",
			Description: "Total uses a different typeface.",
			Reasoning:   "Kerning differs from the rest of the receipt.",
			BoundingBox: []float64{0.1, 0.2, 0.3, 0.4},
		}},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}

	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
	gen, _ := gotBody["generationConfig"].(map[string]any)
	if gen["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v", gen["responseMimeType"])
	}
	schema, _ := gen["responseSchema"].(map[string]any)
	if diff := cmp.Diff([]any{"verdict", "confidence", "summary", "evidence"}, schema["required"]); diff != "" {
		t.Errorf("schema required (-want +got):\n%s", diff)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Error("expected systemInstruction in body")
	}
	if _, ok := gotBody["contents"]; !ok {
		t.Error("expected contents in body")
	}
}

func TestAnalyze_EmptyEvidenceAndZeroConfidence(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Responses: []testutil.CannedResponse{
		{Status: 200, Body: envelope(t, `{"verdict":"Uncertain","confidence":0,"summary":"","evidence":[]}`)},
	}}
	client, _ := newClient(wc, "k")

	result, err := client.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Verdict != model.VerdictUncertain || result.Confidence != 0 || len(result.Evidence) != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestAnalyze_OutOfRangeConfidencePassesThrough(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Responses: []testutil.CannedResponse{
		{Status: 200, Body: envelope(t, `{"verdict":"Real","confidence":140,"summary":"s","evidence":[]}`)},
	}}
	client, _ := newClient(wc, "k")

	result, err := client.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Confidence != 140 {
		t.Errorf("confidence = %d", result.Confidence)
	}
}

// ─── Failure classification ────────────────────────────────────────────

func TestAnalyze_SchemaViolations(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown verdict":     `{"verdict":"Fake","confidence":50,"summary":"s","evidence":[]}`,
		"missing confidence":  `{"verdict":"Real","summary":"s","evidence":[]}`,
		"missing summary":     `{"verdict":"Real","confidence":5,"evidence":[]}`,
		"missing evidence":    `{"verdict":"Real","confidence":5,"summary":"s"}`,
		"evidence no reason":  `{"verdict":"Real","confidence":5,"summary":"s","evidence":[{"feature":"f","description":"d"}]}`,
		"confidence not int":  `{"verdict":"Real","confidence":"high","summary":"s","evidence":[]}`,
		"not json":            `I think this image is real.`,
		"truncated json":      `{"verdict":"Real","confidence":5,`,
		"trailing prose":      `{"verdict":"Real","confidence":5,"summary":"s","evidence":[]} and some prose`,
		"two objects":         `{"verdict":"Real","confidence":5,"summary":"s","evidence":[]}{"verdict":"Tampered"}`,
		"box with non-number": `{"verdict":"Real","confidence":5,"summary":"s","evidence":[{"feature":"f","description":"d","reasoning":"r","boundingBox":["a"]}]}`,
	}
	for name, text := range cases {
		text := text
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			wc := &testutil.DummyWebClient{Responses: []testutil.CannedResponse{{Status: 200, Body: envelope(t, text)}}}
			client, logger := newClient(wc, "k")

			result, err := client.Analyze(context.Background(), testRequest())
			if result != nil {
				t.Errorf("expected no result, got %+v", result)
			}
			assertAnalysisError(t, err, analysis.ReasonDecode)
			if logger.ErrorCount() == 0 {
				t.Error("expected the cause to be logged")
			}
		})
	}
}

func TestAnalyze_NoResponse(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty body":    "",
		"no candidates": `{"candidates":[]}`,
		"blank text":    `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`,
		"blocked":       `{"promptFeedback":{"blockReason":"SAFETY"}}`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			wc := &testutil.DummyWebClient{Responses: []testutil.CannedResponse{{Status: 200, Body: body}}}
			client, _ := newClient(wc, "k")

			_, err := client.Analyze(context.Background(), testRequest())
			assertAnalysisError(t, err, analysis.ReasonNoResponse)
		})
	}
}

func TestAnalyze_TransportErrorIsUniform(t *testing.T) {
	t.Parallel()
	cause := errors.New("dial tcp: connection refused")
	wc := &testutil.DummyWebClient{Responses: []testutil.CannedResponse{{Err: cause}}}
	client, _ := newClient(wc, "k")

	_, err := client.Analyze(context.Background(), testRequest())
	assertAnalysisError(t, err, analysis.ReasonTransport)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved for diagnostics")
	}
	if strings.Contains(err.Error(), "refused") {
		t.Error("user message must not leak the cause")
	}
	if wc.Calls() != 1 {
		t.Errorf("expected a single attempt, got %d", wc.Calls())
	}
}

func TestAnalyze_NoRetryByDefault(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Responses: []testutil.CannedResponse{
		{Status: 503}, {Status: 503}, {Status: 503},
	}}
	client, _ := newClient(wc, "k")

	_, err := client.Analyze(context.Background(), testRequest())
	assertAnalysisError(t, err, analysis.ReasonStatus)
	if wc.Calls() != 1 {
		t.Errorf("expected a single request, got %d", wc.Calls())
	}
	if analysis.DefaultConfig().MaxAttempts != 1 {
		t.Errorf("default MaxAttempts = %d", analysis.DefaultConfig().MaxAttempts)
	}
}

func TestAnalyze_RetriesTransientStatusWhenConfigured(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Responses: []testutil.CannedResponse{
		{Status: 429, Body: `{"error":{"code":429}}`},
		{Status: 503},
		{Status: 200, Body: envelope(t, tamperedResult)},
	}}
	cfg := analysis.DefaultConfig()
	cfg.APIKey = "k"
	cfg.MaxAttempts = 3
	cfg.RetryDelay = time.Millisecond
	client := analysis.NewClient(cfg, wc, testutil.NewDummyLogger())

	result, err := client.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Verdict != model.VerdictTampered {
		t.Errorf("verdict = %q", result.Verdict)
	}
	if wc.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", wc.Calls())
	}
}

func TestAnalyze_ClientErrorStatusNotRetried(t *testing.T) {
	t.Parallel()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"API key not valid"}}`)
	}))
	defer ts.Close()

	wc, _ := webclient.NewNetHTTPClient(webclient.Config{}, nil, ts.Client())
	cfg := analysis.DefaultConfig()
	cfg.APIKey = "bad"
	cfg.BaseURL = ts.URL
	client := analysis.NewClient(cfg, wc, nil)

	_, err := client.Analyze(context.Background(), testRequest())
	assertAnalysisError(t, err, analysis.ReasonStatus)
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestAnalyze_ContextCanceled(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{ResponseDelay: time.Second}
	client, _ := newClient(wc, "k")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Analyze(ctx, testRequest())
	assertAnalysisError(t, err, analysis.ReasonTransport)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestAnalyze_AcceptsEveryVerdict(t *testing.T) {
	t.Parallel()
	for _, v := range model.Verdicts {
		text := `{"verdict":"` + string(v) + `","confidence":50,"summary":"s","evidence":[]}`
		wc := &testutil.DummyWebClient{Responses: []testutil.CannedResponse{{Status: 200, Body: envelope(t, text)}}}
		client, _ := newClient(wc, "k")

		result, err := client.Analyze(context.Background(), testRequest())
		if err != nil {
			t.Errorf("%s: %v", v, err)
			continue
		}
		if result.Verdict != v {
			t.Errorf("verdict = %q, want %q", result.Verdict, v)
		}
	}
}

// ─── Schema ────────────────────────────────────────────────────────────

func TestResponseSchema_VerdictEnum(t *testing.T) {
	t.Parallel()
	s := analysis.ResponseSchema()
	want := []string{"Real", "AI-Generated", "Tampered", "Uncertain"}
	if diff := cmp.Diff(want, s.Properties["verdict"].Enum); diff != "" {
		t.Errorf("enum (-want +got):\n%s", diff)
	}
	item := s.Properties["evidence"].Items
	if diff := cmp.Diff([]string{"feature", "description", "reasoning"}, item.Required); diff != "" {
		t.Errorf("evidence required (-want +got):\n%s", diff)
	}
	if item.Properties["boundingBox"].Items.Type != "NUMBER" {
		t.Error("expected numeric bounding box items")
	}
}
