// Package analysis sends composed evidence requests to the Gemini
// generateContent endpoint and turns the structured reply into a validated
// model.AnalysisResult.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/raysh454/veritas/internal/composer"
	"github.com/raysh454/veritas/internal/logging"
	"github.com/raysh454/veritas/internal/model"
	"github.com/raysh454/veritas/internal/webclient"
)

const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel       = "gemini-2.5-flash"
	DefaultTimeout     = 120 * time.Second
	DefaultMaxAttempts = 1
	DefaultRetryDelay  = 2 * time.Second
	DefaultTemperature = 0.2
)

// Config configures a Client. The credential is injected here; nothing is read
// from the environment.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	// MaxAttempts above 1 retries 429 and 5xx responses. The default sends
	// a single request.
	MaxAttempts int
	RetryDelay  time.Duration
	Temperature float64
}

// DefaultConfig returns a Config with every field but APIKey set.
func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		BaseURL:     DefaultBaseURL,
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
		Temperature: DefaultTemperature,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	c.APIKey = strings.TrimSpace(c.APIKey)
	if strings.TrimSpace(c.Model) == "" {
		c.Model = d.Model
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = d.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.Temperature < 0 {
		c.Temperature = d.Temperature
	}
	return c
}

// Client is an explicitly constructed analysis client.
type Client struct {
	cfg    Config
	wc     webclient.WebClient
	logger logging.Logger
}

// NewClient creates a Client. A missing credential is not an error here; it
// is reported by CheckCredentials and Analyze.
func NewClient(cfg Config, wc webclient.WebClient, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		wc:  wc,
		logger: logger.With(
			logging.Field{Key: "component", Value: "analysis"},
			logging.Field{Key: "model", Value: cfg.Model}),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// CheckCredentials fails with *ConfigurationError when no API key is set.
// It performs no I/O.
func (c *Client) CheckCredentials() error {
	if c.cfg.APIKey == "" {
		return &ConfigurationError{
			Setting: "analysis.api_key",
			Msg:     "API key is missing: set GEMINI_API_KEY or API_KEY",
		}
	}
	if c.wc == nil {
		return &ConfigurationError{Setting: "webclient", Msg: "analysis client has no transport"}
	}
	return nil
}

// Endpoint returns the generateContent URL for the configured model.
func (c *Client) Endpoint() string {
	m := c.cfg.Model
	if !strings.HasPrefix(m, "models/") {
		m = "models/" + m
	}
	return fmt.Sprintf("%s/%s:generateContent", c.cfg.BaseURL, m)
}

// Analyze sends req and returns the validated result. Errors are either
// *ConfigurationError or *AnalysisError; a result is never partially filled.
func (c *Client) Analyze(ctx context.Context, req *composer.Request) (*model.AnalysisResult, error) {
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, c.fail(newAnalysisError(ReasonEncode, errors.New("nil request")))
	}

	body, err := json.Marshal(generateContentRequest{
		Request: req,
		GenerationConfig: GenerationConfig{
			Temperature:      c.cfg.Temperature,
			ResponseMIMEType: "application/json",
			ResponseSchema:   ResponseSchema(),
		},
	})
	if err != nil {
		return nil, c.fail(newAnalysisError(ReasonEncode, err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("x-goog-api-key", c.cfg.APIKey)
	httpReq := &webclient.Request{
		Method:  http.MethodPost,
		URL:     c.Endpoint(),
		Headers: headers,
		Body:    body,
	}

	start := time.Now()
	attempt := 0
	resp, err := webclient.DoWithRetry(ctx, c.cfg.MaxAttempts, c.cfg.RetryDelay, func(ctx context.Context) (*webclient.Response, error) {
		attempt++
		r, err := c.wc.Do(ctx, httpReq)
		if err == nil && webclient.Retryable(r.StatusCode) && attempt < c.cfg.MaxAttempts {
			c.logger.Warn("transient status from analysis endpoint, retrying",
				logging.Field{Key: "status", Value: r.StatusCode},
				logging.Field{Key: "attempt", Value: attempt})
		}
		return r, err
	})
	if err != nil {
		return nil, c.fail(newAnalysisError(ReasonTransport, err))
	}
	if !resp.OK() {
		return nil, c.fail(newAnalysisError(ReasonStatus,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(resp.Body), 256))))
	}

	result, aerr := c.decode(resp.Body)
	if aerr != nil {
		return nil, c.fail(aerr)
	}

	c.logger.Info("analysis complete",
		logging.Field{Key: "verdict", Value: string(result.Verdict)},
		logging.Field{Key: "confidence", Value: result.Confidence},
		logging.Field{Key: "evidence", Value: len(result.Evidence)},
		logging.Field{Key: "attempts", Value: attempt},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})
	return result, nil
}

func (c *Client) decode(body []byte) (*model.AnalysisResult, *AnalysisError) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, newAnalysisError(ReasonNoResponse, errors.New("empty response body"))
	}

	var envelope generateContentResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, newAnalysisError(ReasonDecode, fmt.Errorf("decode envelope: %w", err))
	}
	if br := envelope.PromptFeedback.BlockReason; br != "" {
		return nil, newAnalysisError(ReasonNoResponse, fmt.Errorf("prompt blocked: %s", br))
	}
	text := envelope.FirstText()
	if text == "" {
		return nil, newAnalysisError(ReasonNoResponse, errors.New("no text in candidates"))
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, newAnalysisError(ReasonDecode, fmt.Errorf("decode result: %w", err))
	}
	if err := validate.Struct(&wire); err != nil {
		return nil, newAnalysisError(ReasonDecode, fmt.Errorf("validate result: %w", err))
	}
	return wire.toModel(), nil
}

func (c *Client) fail(err *AnalysisError) *AnalysisError {
	c.logger.Error("analysis failed",
		logging.Field{Key: "reason", Value: err.Reason},
		logging.Field{Key: "error", Value: err.Err})
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
