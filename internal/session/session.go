// Package session drives one upload at a time through metadata extraction and
// analysis, merging both outcomes into a single observable state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raysh454/veritas/internal/analysis"
	"github.com/raysh454/veritas/internal/logging"
	"github.com/raysh454/veritas/internal/metadata"
	"github.com/raysh454/veritas/internal/model"
	"github.com/raysh454/veritas/internal/pipeline"
	"github.com/raysh454/veritas/internal/preview"
)

// Extractor produces the metadata shown alongside the result.
type Extractor interface {
	Extract(ctx context.Context, data []byte, info metadata.FileInfo) metadata.Result
}

// Analyzer runs the analysis path for an upload.
type Analyzer interface {
	Precheck() error
	Analyze(ctx context.Context, up model.Upload) (*model.AnalysisResult, error)
}

// Deps are the collaborators of a Session.
type Deps struct {
	Extractor Extractor
	Analyzer  Analyzer
	Previews  *preview.Store
	Logger    logging.Logger
}

const subscriberBuffer = 16

// Session is the state controller for a single active upload.
type Session struct {
	id     string
	deps   Deps
	logger logging.Logger

	mu         sync.Mutex
	state      State
	handle     *preview.Handle
	cancel     context.CancelFunc
	lastActive time.Time
	closed     bool
	subs       map[int]chan State
	nextSub    int

	wg sync.WaitGroup
}

// New creates an idle session.
func New(id string, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Previews == nil {
		deps.Previews = preview.NewStore()
	}
	now := time.Now().UTC()
	return &Session{
		id:         id,
		deps:       deps,
		logger:     deps.Logger.With(logging.Field{Key: "component", Value: "session"}, logging.Field{Key: "session_id", Value: id}),
		state:      State{ID: id, Phase: PhaseIdle, UpdatedAt: now},
		lastActive: now,
		subs:       make(map[int]chan State),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Select installs a new upload: it releases any previous preview, allocates a
// new one, clears prior outcomes and starts extraction and analysis
// concurrently. It fails with ErrBusy while an upload is loading.
//
// When the analyzer's precheck fails the session goes straight to failed with
// that message and nothing is extracted.
func (s *Session) Select(up model.Upload) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return State{}, ErrClosed
	}
	if s.state.IsLoading {
		return s.state, ErrBusy
	}

	s.releaseLocked()
	s.handle = s.deps.Previews.Allocate(up.Data, up.MIMEType)
	s.lastActive = time.Now().UTC()

	gen := s.state.Generation + 1
	s.state = State{
		ID:         s.id,
		Phase:      PhaseAnalyzing,
		IsLoading:  true,
		FileName:   up.Name,
		PreviewID:  s.handle.ID(),
		Generation: gen,
	}

	log := s.logger.With(
		logging.Field{Key: "generation", Value: gen},
		logging.Field{Key: "file", Value: up.Name},
		logging.Field{Key: "fingerprint", Value: fmt.Sprintf("%016x", up.Fingerprint())})

	if err := s.deps.Analyzer.Precheck(); err != nil {
		log.Warn("analysis precheck failed", logging.Field{Key: "error", Value: err})
		s.state.IsLoading = false
		s.state.Phase = PhaseFailed
		s.state.Error = userMessage(err)
		s.publishLocked()
		return s.state, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx, gen, up, log)

	log.Info("upload selected")
	s.publishLocked()
	return s.state, nil
}

func (s *Session) run(ctx context.Context, gen uint64, up model.Upload, log logging.Logger) {
	defer s.wg.Done()

	var g errgroup.Group
	g.Go(func() error {
		md := s.deps.Extractor.Extract(ctx, up.Data, pipeline.InfoFor(up))
		s.mergeMetadata(gen, md)
		return nil
	})
	g.Go(func() error {
		result, err := s.deps.Analyzer.Analyze(ctx, up)
		s.mergeAnalysis(gen, result, err, log)
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	if s.state.Generation == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

func (s *Session) mergeMetadata(gen uint64, md metadata.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Generation != gen || s.closed {
		return
	}
	s.state.Metadata = &md
	s.publishLocked()
}

func (s *Session) mergeAnalysis(gen uint64, result *model.AnalysisResult, err error, log logging.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Generation != gen || s.closed {
		log.Debug("discarding superseded analysis outcome")
		return
	}

	s.state.IsLoading = false
	if err != nil {
		s.state.Phase = PhaseFailed
		s.state.Error = userMessage(err)
		log.Warn("analysis failed", logging.Field{Key: "error", Value: err})
	} else {
		s.state.Phase = PhaseReady
		s.state.Result = result
		log.Info("analysis ready",
			logging.Field{Key: "verdict", Value: string(result.Verdict)},
			logging.Field{Key: "confidence", Value: result.Confidence})
	}
	s.publishLocked()
}

// Reset returns the session to idle. The preview handle is released before
// the state is cleared and any in-flight work is cancelled and discarded.
func (s *Session) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.publishLocked()
	return s.state
}

func (s *Session) resetLocked() {
	s.releaseLocked()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.lastActive = time.Now().UTC()
	s.state = State{
		ID:         s.id,
		Phase:      PhaseIdle,
		Generation: s.state.Generation + 1,
	}
}

func (s *Session) releaseLocked() {
	if s.handle != nil {
		s.handle.Release()
		s.handle = nil
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now().UTC()
	return s.state
}

// Subscribe returns a channel of state updates and a function that ends the
// subscription. Updates are dropped for subscribers whose buffer is full.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Session) publishLocked() {
	s.state.UpdatedAt = time.Now().UTC()
	for _, ch := range s.subs {
		select {
		case ch <- s.state:
		default:
		}
	}
}

// Close resets the session, ends all subscriptions and rejects further
// selections.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
}

// Wait blocks until background work started by Select has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// idleSince reports when the session was last used, and whether it is loading.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.state.IsLoading
}

// userMessage keeps configuration messages verbatim and reduces everything
// else to the generic failure text.
func userMessage(err error) string {
	var cerr *analysis.ConfigurationError
	if errors.As(err, &cerr) {
		return cerr.Error()
	}
	return analysis.FailureMessage
}
