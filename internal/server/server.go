// Package server exposes the sample and download pipelines over HTTP.
package server

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/download"
	"github.com/sells-group/submit-service/internal/sample"
)

// Options configures the HTTP surface.
type Options struct {
	StaticDir string // served at / when it exists
	// Registry receives the request metrics and backs /metrics. A private
	// registry is created when nil.
	Registry *prometheus.Registry
}

// Server wires the pipelines to HTTP handlers.
type Server struct {
	sampler   *sample.Sampler
	downloads *download.Pipeline
	opts      Options
	log       *zap.Logger
}

// New returns a Server answering /fields with s and /download with d.
func New(s *sample.Sampler, d *download.Pipeline, opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	return &Server{
		sampler:   s,
		downloads: d,
		opts:      opts,
		log:       zap.L().With(zap.String("component", "server")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	metrics := NewMetrics(s.opts.Registry)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/fields", metrics.Monitor("fields", http.HandlerFunc(s.handleFields)))
	r.Get("/download/*", metrics.Monitor("download", http.HandlerFunc(s.handleDownload)))
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))

	if s.opts.StaticDir != "" {
		if info, err := os.Stat(s.opts.StaticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
		} else {
			s.log.Debug("static directory not found", zap.String("dir", s.opts.StaticDir))
		}
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
