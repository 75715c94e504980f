package server

import (
	"github.com/raysh454/veritas/internal/geometry"
	"github.com/raysh454/veritas/internal/session"
)

// SessionResponse is a session snapshot plus the overlays derived from its result.
type SessionResponse struct {
	session.State
	PreviewURL string             `json:"previewUrl,omitempty" example:"/sessions/0b5e.../preview/9f1c..."`
	Overlays   []geometry.Overlay `json:"overlays"`
}

// HealthResponse is returned by the liveness check.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"session not found"`
}
