// Package webclient executes outbound HTTP requests for the analysis service.
package webclient

import "context"

// WebClient sends a single request and returns the fully read response.
// Non-2xx statuses are not errors; callers inspect Response.StatusCode.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}
