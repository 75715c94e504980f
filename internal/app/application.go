package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raysh454/veritas/internal/analysis"
	"github.com/raysh454/veritas/internal/geometry"
	"github.com/raysh454/veritas/internal/logging"
	"github.com/raysh454/veritas/internal/metadata"
	"github.com/raysh454/veritas/internal/model"
	"github.com/raysh454/veritas/internal/pipeline"
	"github.com/raysh454/veritas/internal/preview"
	"github.com/raysh454/veritas/internal/server"
	"github.com/raysh454/veritas/internal/session"
	"github.com/raysh454/veritas/internal/webclient"
)

const (
	userAgent        = "veritas/0.1"
	maxResponseBytes = 8 << 20
)

// ErrNotImage is returned by AnalyzeFile for files that are not images.
var ErrNotImage = errors.New("file is not an image")

// Application is the runtime state container. It owns the shared services
// and wires them into the HTTP server.
type Application struct {
	Config *Config
	Logger logging.Logger

	Extractor *metadata.Extractor
	Analysis  *analysis.Client
	Pipeline  *pipeline.Pipeline
	Previews  *preview.Store
	Sessions  *session.Manager
	Server    *server.Server

	web webclient.WebClient

	// internal context for cancellation / lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication builds every component from cfg. If web is nil a net/http
// client is created.
func NewApplication(cfg *Config, logger logging.Logger, web webclient.WebClient) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if web == nil {
		nc, err := webclient.NewNetHTTPClient(webclient.Config{
			Timeout:          cfg.Analysis.Timeout,
			MaxResponseBytes: maxResponseBytes,
			UserAgent:        userAgent,
		}, logger, nil)
		if err != nil {
			return nil, fmt.Errorf("creating webclient: %w", err)
		}
		web = nc
	}

	extractor := metadata.NewExtractor(logger)
	client := analysis.NewClient(cfg.Analysis, web, logger)
	pipe := pipeline.New(extractor, client, logger)
	previews := preview.NewStore()
	sessions := session.NewManager(session.Deps{
		Extractor: extractor,
		Analyzer:  pipe,
		Previews:  previews,
		Logger:    logger,
	}, cfg.Server.SessionTTL)

	srv := server.New(server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	}, sessions, previews)

	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		Config:    cfg,
		Logger:    logger,
		Extractor: extractor,
		Analysis:  client,
		Pipeline:  pipe,
		Previews:  previews,
		Sessions:  sessions,
		Server:    srv,
		web:       web,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start launches background housekeeping. It does not start listening; use
// Server.HTTPServer for that.
func (a *Application) Start() error {
	if a == nil {
		return errors.New("application is nil")
	}
	if err := a.Pipeline.Precheck(); err != nil {
		a.Logger.Warn("analysis unavailable until configured", logging.Field{Key: "error", Value: err})
	}
	if a.Config.Server.SessionTTL > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.Sessions.RunSweeper(a.ctx, a.Config.Server.SweepInterval)
		}()
	}
	a.Logger.Info("application started",
		logging.Field{Key: "listen_addr", Value: a.Config.Server.ListenAddr},
		logging.Field{Key: "model", Value: a.Analysis.Model()})
	return nil
}

// Shutdown stops housekeeping, closes every session and the web client.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")
	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		a.Sessions.Close()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for sessions: %w", ctx.Err())
	}
	if cerr := a.web.Close(); cerr != nil {
		a.Logger.Warn("closing webclient", logging.Field{Key: "error", Value: cerr})
	}
	return err
}

// FileReport is the outcome of a one-shot analysis.
type FileReport struct {
	File     string                `json:"file"`
	MIMEType string                `json:"mimeType"`
	Metadata metadata.Result       `json:"metadata"`
	Analysis *model.AnalysisResult `json:"analysis"`
	Overlays []geometry.Overlay    `json:"overlays"`
	Elapsed  string                `json:"elapsed"`
}

// AnalyzeFile runs extraction and analysis for a single file outside any
// session.
func (a *Application) AnalyzeFile(ctx context.Context, path string) (*FileReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	up := model.NewUpload(filepath.Base(path), "", data)
	if !up.IsImage() {
		return nil, fmt.Errorf("%s (%s): %w", path, up.MIMEType, ErrNotImage)
	}
	return a.AnalyzeUpload(ctx, up)
}

// AnalyzeUpload runs extraction and analysis for up concurrently.
func (a *Application) AnalyzeUpload(ctx context.Context, up model.Upload) (*FileReport, error) {
	if err := a.Pipeline.Precheck(); err != nil {
		return nil, err
	}
	start := time.Now()
	rep := &FileReport{File: up.Name, MIMEType: up.MIMEType}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep.Metadata = a.Extractor.Extract(gctx, up.Data, pipeline.InfoFor(up))
		return nil
	})
	g.Go(func() error {
		res, err := a.Pipeline.Analyze(gctx, up)
		if err != nil {
			return err
		}
		rep.Analysis = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep.Overlays = geometry.MapAll(rep.Analysis.Evidence)
	rep.Elapsed = time.Since(start).Round(time.Millisecond).String()
	return rep, nil
}
