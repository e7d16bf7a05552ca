// Package api serves the thin document backend the despesa client talks
// to. It hides the storage credentials from clients and exposes each
// document over GET/PUT with ETag version tags and If-Match conditioned
// writes, so the optimistic concurrency protocol works end to end.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/oriolbns/despesa/docstore"
)

// documents maps URL path segments to stored document names. Anything
// else is 404: the backend manages exactly these documents.
var documents = map[string]string{
	"expenses": "expenses.json",
	"settings": "settings.json",
}

// API holds the dependencies needed by the REST handlers.
type API struct {
	repo        docstore.Repository
	token       string
	rateLimiter *writeRateLimiter
	audit       *auditLogger
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. If not set, a
// default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithAuthToken requires clients to present the given bearer token. An
// empty token leaves the API open, for local development only.
func WithAuthToken(token string) Option {
	return func(a *API) {
		a.token = token
	}
}

// New creates a new API instance over the given document repository.
func New(repo docstore.Repository, opts ...Option) *API {
	a := &API{
		repo:        repo,
		rateLimiter: newWriteRateLimiter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Route("/documents/{document}", func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/", a.GetDocument)
		r.Put("/", a.PutDocument)
	})

	return r
}
