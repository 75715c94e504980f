package server

import "github.com/raysh454/veritas/internal/logging"

// Config holds configuration for the HTTP API server.
type Config struct {
	// ListenAddr is the address to listen on, e.g. ":8080".
	ListenAddr string

	// MaxUploadBytes caps the image upload body. Zero means unlimited.
	MaxUploadBytes int64

	// Logger is used for request and handler logging. Optional.
	Logger logging.Logger
}
