package webclient

import "time"

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Config holds the settings for constructing a WebClient. Zero values pick
// the defaults.
type Config struct {
	Timeout time.Duration
	// MaxResponseBytes caps how much of a response body is read. Zero means no cap.
	MaxResponseBytes int64
	UserAgent        string
}
