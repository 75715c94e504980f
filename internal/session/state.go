package session

import (
	"errors"
	"time"

	"github.com/raysh454/veritas/internal/metadata"
	"github.com/raysh454/veritas/internal/model"
)

var (
	// ErrBusy is returned when an image is selected while one is loading.
	ErrBusy = errors.New("session: analysis already in progress")
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session: not found")
	// ErrClosed is returned by operations on a removed session.
	ErrClosed = errors.New("session: closed")
)

// Phase is the lifecycle position of a session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAnalyzing Phase = "analyzing"
	PhaseReady     Phase = "ready"
	PhaseFailed    Phase = "failed"
)

// State is a point-in-time copy of a session. Metadata is owned by the
// extraction task; Result, Error and IsLoading by the analysis task.
type State struct {
	ID         string                `json:"id"`
	Phase      Phase                 `json:"phase"`
	IsLoading  bool                  `json:"isLoading"`
	FileName   string                `json:"fileName,omitempty"`
	PreviewID  string                `json:"previewId,omitempty"`
	Error      string                `json:"error,omitempty"`
	Result     *model.AnalysisResult `json:"result,omitempty"`
	Metadata   *metadata.Result      `json:"metadata,omitempty"`
	Generation uint64                `json:"generation"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}
