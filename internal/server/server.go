package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/veritas/docs/swagger" // registers the OpenAPI document
	"github.com/raysh454/veritas/internal/geometry"
	"github.com/raysh454/veritas/internal/logging"
	"github.com/raysh454/veritas/internal/model"
	"github.com/raysh454/veritas/internal/preview"
	"github.com/raysh454/veritas/internal/report"
	"github.com/raysh454/veritas/internal/session"
)

// multipartMemory is the part of a multipart upload kept in memory before
// spilling to disk.
const multipartMemory = 32 << 20

// Server is the HTTP + WebSocket API surface for Veritas.
type Server struct {
	cfg      Config
	sessions *session.Manager
	previews *preview.Store
	reports  *report.Renderer
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// New creates a Server over an existing session manager and the preview
// store its sessions allocate from.
func New(cfg Config, sessions *session.Manager, previews *preview.Store) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		previews: previews,
		reports:  report.NewRenderer(),
		router:   r,
		logger:   logger.With(logging.Field{Key: "component", Value: "server"}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict to configured origins once a frontend is deployed
				return true
			},
		},
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/sessions", s.optionsHandler("POST"))
	r.Options("/sessions/{id}", s.optionsHandler("GET, DELETE"))
	r.Options("/sessions/{id}/image", s.optionsHandler("POST, DELETE"))
	r.Options("/sessions/{id}/preview/{handle}", s.optionsHandler("GET"))
	r.Options("/sessions/{id}/report", s.optionsHandler("GET"))
	r.Options("/ws/sessions/{id}", s.optionsHandler("GET"))

	r.Get("/healthz", s.handleHealth)

	// Sessions
	r.Post("/sessions", s.handleCreateSession)
	r.Get("/sessions/{id}", s.handleGetSession)
	r.Delete("/sessions/{id}", s.handleDeleteSession)

	// Image selection and reset
	r.Post("/sessions/{id}/image", s.handleSelectImage)
	r.Delete("/sessions/{id}/image", s.handleResetImage)

	// Outputs
	r.Get("/sessions/{id}/preview/{handle}", s.handlePreview)
	r.Get("/sessions/{id}/report", s.handleReport)

	// WebSocket for state updates
	r.Get("/ws/sessions/{id}", s.handleSessionWS)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler. Upload bodies are image bytes, so only
// their size is logged.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}
	if r.ContentLength > 0 {
		fields = append(fields, logging.Field{Key: "content_length", Value: humanize.IBytes(uint64(r.ContentLength))})
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) response(st session.State) SessionResponse {
	resp := SessionResponse{State: st, Overlays: []geometry.Overlay{}}
	if st.PreviewID != "" {
		resp.PreviewURL = previewURL(st.ID, st.PreviewID)
	}
	if st.Result != nil && !st.IsLoading {
		resp.Overlays = geometry.MapAll(st.Result.Evidence)
	}
	return resp
}

func previewURL(sessionID, handle string) string {
	return "/sessions/" + sessionID + "/preview/" + handle
}

// lookup resolves the {id} URL parameter, writing a 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// --- HTTP handlers ---

// handleHealth godoc
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Sessions

// handleCreateSession godoc
// @Summary Create an idle session
// @Tags sessions
// @Produce json
// @Success 201 {object} SessionResponse
// @Router /sessions [post]
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.logger.Info("created session", logging.Field{Key: "session_id", Value: sess.ID()})
	writeJSON(w, http.StatusCreated, s.response(sess.Snapshot()))
}

// handleGetSession godoc
// @Summary Get the session state with overlays
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.response(sess.Snapshot()))
}

// handleDeleteSession godoc
// @Summary Reset and remove a session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Info("deleted session", logging.Field{Key: "session_id", Value: id})
	w.WriteHeader(http.StatusNoContent)
}

// Image selection

// handleSelectImage godoc
// @Summary Select an image and start extraction and analysis
// @Tags sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param image formData file true "Image file"
// @Success 202 {object} SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /sessions/{id}/image [post]
func (s *Server) handleSelectImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	up, status, msg := s.readUpload(w, r)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	st, err := sess.Select(up)
	switch {
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, "an image is already being analyzed")
		return
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case err != nil:
		s.logger.Warn("selecting image", logging.Field{Key: "error", Value: err})
		writeError(w, http.StatusInternalServerError, "failed to start analysis")
		return
	}

	s.logger.Info("image selected",
		logging.Field{Key: "session_id", Value: sess.ID()},
		logging.Field{Key: "file", Value: up.Name},
		logging.Field{Key: "mime_type", Value: up.MIMEType},
		logging.Field{Key: "size", Value: humanize.IBytes(uint64(up.Size()))})
	writeJSON(w, http.StatusAccepted, s.response(st))
}

// readUpload reads the "image" form file. A non-zero status reports why the
// upload was rejected.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (model.Upload, int, string) {
	if limit := s.cfg.MaxUploadBytes; limit > 0 {
		if r.ContentLength > limit {
			return model.Upload{}, http.StatusRequestEntityTooLarge, "image exceeds the upload limit"
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge(err) {
			return model.Upload{}, http.StatusRequestEntityTooLarge, "image exceeds the upload limit"
		}
		return model.Upload{}, http.StatusBadRequest, "expected multipart form with an image field"
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		return model.Upload{}, http.StatusBadRequest, "missing image file"
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if tooLarge(err) {
			return model.Upload{}, http.StatusRequestEntityTooLarge, "image exceeds the upload limit"
		}
		return model.Upload{}, http.StatusBadRequest, "reading image file failed"
	}
	if len(data) == 0 {
		return model.Upload{}, http.StatusBadRequest, "image file is empty"
	}

	up := model.NewUpload(header.Filename, header.Header.Get("Content-Type"), data)
	if !up.IsImage() {
		return model.Upload{}, http.StatusBadRequest, "unsupported file type " + up.MIMEType
	}
	return up, 0, ""
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// handleResetImage godoc
// @Summary Reset the session to idle
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/image [delete]
func (s *Server) handleResetImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st := sess.Reset()
	s.logger.Info("session reset", logging.Field{Key: "session_id", Value: sess.ID()})
	writeJSON(w, http.StatusOK, s.response(st))
}

// Outputs

// handlePreview godoc
// @Summary Serve the preview image while its handle is live
// @Tags sessions
// @Produce image/jpeg
// @Param id path string true "Session ID"
// @Param handle path string true "Preview handle"
// @Success 200
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/preview/{handle} [get]
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	handle := chi.URLParam(r, "handle")
	if sess.Snapshot().PreviewID != handle {
		writeError(w, http.StatusNotFound, "preview not available")
		return
	}
	data, mimeType, ok := s.previews.Get(handle)
	if !ok {
		writeError(w, http.StatusNotFound, "preview not available")
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleReport godoc
// @Summary Render the HTML forensic report
// @Tags sessions
// @Produce html
// @Param id path string true "Session ID"
// @Success 200
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/report [get]
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st := sess.Snapshot()

	in := report.Input{
		FileName:  st.FileName,
		IsLoading: st.IsLoading,
		Error:     st.Error,
		Result:    st.Result,
		Metadata:  st.Metadata,
	}
	if st.PreviewID != "" {
		in.ImageURL = previewURL(st.ID, st.PreviewID)
	}

	var buf bytes.Buffer
	if err := s.reports.Render(&buf, in); err != nil {
		s.logger.Error("rendering report", logging.Field{Key: "error", Value: err})
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
