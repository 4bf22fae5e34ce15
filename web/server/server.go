// Package server serves a read-only HTTP view of a running gatekeeper: the loop status, the
// latest annotated frame and recent activations.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"go.viam.com/gatekeeper/control"
	"go.viam.com/gatekeeper/events"
	"go.viam.com/gatekeeper/logging"
)

// DefaultEventsLimit is how many activations /events returns without a limit parameter.
const DefaultEventsLimit = 20

// A StatusProvider reports loop status. *control.Loop implements it.
type StatusProvider interface {
	Status() control.Status
}

// A FrameProvider holds the most recent encoded frame. *render.Latest implements it.
type FrameProvider interface {
	JPEG() ([]byte, int, bool)
}

// An EventLister lists recent activations. *events.Log implements it.
type EventLister interface {
	Recent(ctx context.Context, limit int) ([]events.Activation, error)
}

// Options are the data sources of a server. Status is required; a nil Frames or Events
// makes the matching route answer 404.
type Options struct {
	Status StatusProvider
	Frames FrameProvider
	Events EventLister
}

// Server is the HTTP view.
type Server struct {
	opts   Options
	router *mux.Router
	logger logging.Logger
}

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New returns a server with its routes installed.
func New(opts Options, logger logging.Logger) (*Server, error) {
	if opts.Status == nil {
		return nil, errors.New("server needs a status provider")
	}
	s := &Server{opts: opts, router: mux.NewRouter(), logger: logger}
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/frame.jpg", s.handleFrame).Methods(http.MethodGet)
	s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve answers requests on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler:           s.router,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	s.logger.Infow("serving status page", "addr", "http://"+ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "cannot shut down http server")
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("http request", "method", r.Method, "path", r.URL.Path, "took", time.Since(started))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("cannot write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, errCode, msg string) {
	s.writeJSON(w, code, ErrorResponse{Code: errCode, Message: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.opts.Status.Status())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if s.opts.Frames == nil {
		s.writeError(w, http.StatusNotFound, "DISABLED", "live view is disabled")
		return
	}
	data, index, ok := s.opts.Frames.JPEG()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "NO_FRAME", "no frame has been processed yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Index", strconv.Itoa(index))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debugw("cannot write frame", "error", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Events == nil {
		s.writeError(w, http.StatusNotFound, "DISABLED", "activation log is disabled")
		return
	}
	limit := DefaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "BAD_LIMIT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	activations, err := s.opts.Events.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Warnw("cannot list activations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", "cannot list activations")
		return
	}
	if activations == nil {
		activations = []events.Activation{}
	}
	s.writeJSON(w, http.StatusOK, activations)
}
