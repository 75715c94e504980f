package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raysh454/veritas/internal/analysis"
	"github.com/raysh454/veritas/internal/composer"
	"github.com/raysh454/veritas/internal/metadata"
	"github.com/raysh454/veritas/internal/model"
	"github.com/raysh454/veritas/internal/pipeline"
	"github.com/raysh454/veritas/internal/testutil"
)

type countingExtractor struct {
	calls int
	rec   *metadata.Record
}

func (e *countingExtractor) Extract(_ context.Context, _ []byte, info metadata.FileInfo) metadata.Result {
	e.calls++
	rec := e.rec
	if rec == nil {
		rec = metadata.NewRecord(metadata.Entry{Key: "FileName", Value: info.Name})
	}
	return metadata.Result{Status: metadata.StatusOK, Record: rec}
}

type stubAnalyzer struct {
	credErr error
	result  *model.AnalysisResult
	err     error
	lastReq *composer.Request
}

func (a *stubAnalyzer) CheckCredentials() error { return a.credErr }

func (a *stubAnalyzer) Analyze(_ context.Context, req *composer.Request) (*model.AnalysisResult, error) {
	a.lastReq = req
	return a.result, a.err
}

func upload() model.Upload {
	return model.Upload{Name: "photo.jpg", MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}}
}

func TestPipeline_ComposesWithExtractedMetadata(t *testing.T) {
	t.Parallel()

	ex := &countingExtractor{rec: metadata.NewRecord(
		metadata.Entry{Key: "Make", Value: "Acme"},
		metadata.Entry{Key: "Model", Value: "X1"},
	)}
	an := &stubAnalyzer{result: &model.AnalysisResult{Verdict: model.VerdictAuthentic, Confidence: 90}}
	p := pipeline.New(ex, an, testutil.NewDummyLogger())

	result, err := p.Analyze(context.Background(), upload())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Verdict != model.VerdictAuthentic {
		t.Errorf("verdict = %q", result.Verdict)
	}
	if ex.calls != 1 {
		t.Errorf("expected one extraction, got %d", ex.calls)
	}
	text := an.lastReq.TextPart()
	if !strings.Contains(text, "Make: Acme\nModel: X1") {
		t.Errorf("digest missing from request text: %q", text)
	}
}

func TestPipeline_MissingCredentialSkipsExtraction(t *testing.T) {
	t.Parallel()

	ex := &countingExtractor{}
	an := &stubAnalyzer{credErr: &analysis.ConfigurationError{Msg: "API key is missing"}}
	p := pipeline.New(ex, an, nil)

	if err := p.Precheck(); err == nil {
		t.Fatal("expected precheck failure")
	}
	_, err := p.Analyze(context.Background(), upload())

	var cerr *analysis.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if ex.calls != 0 || an.lastReq != nil {
		t.Error("expected no extraction and no request")
	}
}

func TestPipeline_PropagatesAnalysisError(t *testing.T) {
	t.Parallel()

	an := &stubAnalyzer{err: &analysis.AnalysisError{Reason: analysis.ReasonDecode}}
	logger := testutil.NewDummyLogger()
	p := pipeline.New(&countingExtractor{}, an, logger)

	_, err := p.Analyze(context.Background(), upload())
	if err == nil || err.Error() != analysis.FailureMessage {
		t.Fatalf("expected generic failure, got %v", err)
	}
	if len(logger.Warns) == 0 {
		t.Error("expected rejection to be logged")
	}
}

func TestInfoFor(t *testing.T) {
	t.Parallel()

	info := pipeline.InfoFor(upload())
	if info.Name != "photo.jpg" || info.Size != 4 || info.MIMEType != "image/jpeg" {
		t.Errorf("unexpected info %+v", info)
	}
}
