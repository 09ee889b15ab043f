package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"future-self-ai/internal/infra/i18n"
	"future-self-ai/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ImageFiles resolves a generated image name to a file on disk.
type ImageFiles interface {
	Path(filename string) (string, error)
}

type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
	// ImagePath is the public prefix generated images are served under.
	ImagePath string
	// Ready is consulted by /health; nil means always ready.
	Ready func(ctx context.Context) error
	// Messages localizes response messages; nil selects the embedded catalogue.
	Messages *i18n.Catalog
}

type Server struct {
	portraits usecase.PortraitUseCase
	jobs      usecase.JobUseCase
	images    ImageFiles
	auth      *AuthManager
	opts      Options
	log       *zerolog.Logger
}

func NewServer(
	portraits usecase.PortraitUseCase,
	jobs usecase.JobUseCase,
	images ImageFiles,
	auth *AuthManager,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.ImagePath == "" {
		opts.ImagePath = "/api/images"
	}
	if opts.Messages == nil {
		opts.Messages = i18n.Default()
	}
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		portraits: portraits,
		jobs:      jobs,
		images:    images,
		auth:      auth,
		opts:      opts,
		log:       &l,
	}
}

// Router builds the full HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get(strings.TrimSuffix(s.opts.ImagePath, "/")+"/{filename}", s.serveImage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Post("/generate", s.generate)
		r.Get("/status/{id}", s.status)
		r.Get("/professions", s.professions)
		r.Post("/admin/token", s.issueToken)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.AdminOnly)
			r.Get("/jobs", s.listJobs)
			r.Delete("/jobs/{id}", s.deleteJob)
			r.Get("/statistics", s.statistics)
			r.Get("/models", s.models)
			r.Post("/models/{name}", s.setModel)
			r.Get("/progress", s.progress)
		})
	})
	return r
}
