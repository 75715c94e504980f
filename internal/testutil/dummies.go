// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raysh454/veritas/internal/logging"
	"github.com/raysh454/veritas/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

// NewDummyLogger returns an empty recording logger.
func NewDummyLogger() *DummyLogger { return &DummyLogger{} }

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorCount returns how many Error calls were recorded.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// CannedResponse is one scripted reply of a DummyWebClient.
type CannedResponse struct {
	Status int
	Body   string
	Err    error
}

// DummyWebClient implements webclient.WebClient.
// Replies are served from Responses in order; the last one repeats.
// With no Responses it returns status 200 and an empty body.
type DummyWebClient struct {
	ResponseDelay time.Duration
	Responses     []CannedResponse
	mu            sync.Mutex
	Requests      []*webclient.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	n := len(d.Requests)
	d.Requests = append(d.Requests, req)
	var canned CannedResponse
	switch {
	case len(d.Responses) == 0:
		canned = CannedResponse{Status: 200}
	case n < len(d.Responses):
		canned = d.Responses[n]
	default:
		canned = d.Responses[len(d.Responses)-1]
	}
	d.mu.Unlock()

	if canned.Err != nil {
		return nil, canned.Err
	}
	return &webclient.Response{
		Request:    req,
		Body:       []byte(canned.Body),
		StatusCode: canned.Status,
		FetchedAt:  time.Now(),
	}, nil
}

// Calls returns the number of requests seen.
func (d *DummyWebClient) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

// LastRequest returns the most recent request, or nil.
func (d *DummyWebClient) LastRequest() *webclient.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Requests) == 0 {
		return nil
	}
	return d.Requests[len(d.Requests)-1]
}

func (d *DummyWebClient) Close() error { return nil }
