// Package pipeline runs the analysis path for one upload: extract metadata,
// compose the evidence request and send it to the analysis client.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/raysh454/veritas/internal/composer"
	"github.com/raysh454/veritas/internal/logging"
	"github.com/raysh454/veritas/internal/metadata"
	"github.com/raysh454/veritas/internal/model"
)

// Extractor produces the metadata record embedded in the request.
type Extractor interface {
	Extract(ctx context.Context, data []byte, info metadata.FileInfo) metadata.Result
}

// Analyzer sends a composed request to the model.
type Analyzer interface {
	CheckCredentials() error
	Analyze(ctx context.Context, req *composer.Request) (*model.AnalysisResult, error)
}

// Pipeline implements the analysis half of a session.
type Pipeline struct {
	extractor Extractor
	analyzer  Analyzer
	logger    logging.Logger
}

// New creates a Pipeline.
func New(extractor Extractor, analyzer Analyzer, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		extractor: extractor,
		analyzer:  analyzer,
		logger:    logger.With(logging.Field{Key: "component", Value: "pipeline"}),
	}
}

// Precheck fails when analysis can never succeed, before any extraction or I/O.
func (p *Pipeline) Precheck() error {
	return p.analyzer.CheckCredentials()
}

// Analyze extracts metadata for the request digest, composes and sends it.
// The metadata used here is independent of any extraction the caller shows
// to users.
func (p *Pipeline) Analyze(ctx context.Context, up model.Upload) (*model.AnalysisResult, error) {
	if err := p.Precheck(); err != nil {
		return nil, err
	}

	log := p.logger.With(
		logging.Field{Key: "file", Value: up.Name},
		logging.Field{Key: "fingerprint", Value: fmt.Sprintf("%016x", up.Fingerprint())})
	start := time.Now()

	md := p.extractor.Extract(ctx, up.Data, InfoFor(up))
	if !md.OK() {
		log.Debug("analysing with partial metadata",
			logging.Field{Key: "status", Value: string(md.Status)},
			logging.Field{Key: "diagnostic", Value: md.Diagnostic})
	}

	req := composer.Compose(up.Data, up.MIMEType, md.Record)
	result, err := p.analyzer.Analyze(ctx, req)
	if err != nil {
		log.Warn("analysis rejected",
			logging.Field{Key: "error", Value: err},
			logging.Field{Key: "elapsed", Value: time.Since(start).String()})
		return nil, err
	}

	log.Info("analysis resolved",
		logging.Field{Key: "verdict", Value: string(result.Verdict)},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})
	return result, nil
}

// InfoFor returns the file facts of an upload.
func InfoFor(up model.Upload) metadata.FileInfo {
	return metadata.FileInfo{Name: up.Name, Size: up.Size(), MIMEType: up.MIMEType}
}
