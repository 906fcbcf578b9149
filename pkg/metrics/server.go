package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /metrics on a port of its own. Routes added with Handle
// share that port; the indexer mounts its health checks there since it
// serves no API.
type Server struct {
	mux    *http.ServeMux
	http   *http.Server
	routes []string
	logger *slog.Logger
}

// NewServer scrapes gatherer, normally prometheus.DefaultGatherer.
func NewServer(port int, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		logger: slog.Default().With("component", "metrics-server"),
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	}))
	s.mux.HandleFunc("GET /{$}", s.index)
	return s
}

// Handle mounts h next to /metrics. It must be called before Start.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
	s.routes = append(s.routes, pattern)
}

// Handler returns the routing handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "web search metrics")
	for _, route := range s.routes {
		fmt.Fprintln(w, route)
	}
}

// Start listens in the background. Listen errors are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server listening", "addr", s.http.Addr, "routes", s.routes)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
