package analysis

import "fmt"

// FailureMessage is the only analysis failure text shown to users.
const FailureMessage = "failed to analyze image, please try again"

// Reasons recorded on AnalysisError.
const (
	ReasonNoResponse = "no response"
	ReasonTransport  = "transport"
	ReasonStatus     = "unexpected status"
	ReasonDecode     = "failed to analyze image"
	ReasonEncode     = "request encoding"
)

// ConfigurationError reports a missing or invalid client setting. Its message
// is safe to show users verbatim.
type ConfigurationError struct {
	Setting string
	Msg     string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

// AnalysisError is any failure of a configured analysis attempt. Error()
// always returns FailureMessage; the cause is kept for logs only.
type AnalysisError struct {
	Reason string
	Err    error
}

func (e *AnalysisError) Error() string {
	return FailureMessage
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Detail renders reason and cause for diagnostics.
func (e *AnalysisError) Detail() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func newAnalysisError(reason string, err error) *AnalysisError {
	return &AnalysisError{Reason: reason, Err: err}
}
