// Package httpapi binds the book lifecycle service to HTTP: routing, JSON
// encoding, error mapping, middleware and the OpenAPI description of the API.
package httpapi

import (
	"context"
	"net/http"

	"github.com/bookstore/services/books/internal/books"
	"github.com/bookstore/services/books/internal/metrics"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	apiTitle       = "Book Management API"
	rootMessage    = "Swift API REST"
	apiDescription = "A simple API for managing books"
	defaultVersion = "1.0.0"
)

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options tune the HTTP layer.
type Options struct {
	Version        string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	// Metrics, when set, receives per-request observations and is served on /metrics.
	Metrics *metrics.Metrics
}

// Server serves the books API
type Server struct {
	books   *books.Service
	log     *zap.Logger
	opts    Options
	checks  []HealthCheck
	openapi *openapi3.T
	limiter *clientLimiters
}

// New creates the HTTP binding for svc
func New(svc *books.Service, log *zap.Logger, opts Options, checks ...HealthCheck) *Server {
	if opts.Version == "" {
		opts.Version = defaultVersion
	}

	s := &Server{
		books:  svc,
		log:    log,
		opts:   opts,
		checks: checks,
	}
	s.openapi = s.openAPI()
	if opts.RateLimitRPS > 0 {
		s.limiter = newClientLimiters(opts.RateLimitRPS, opts.RateLimitBurst)
	}
	return s
}

// Handler returns the router wrapped in the middleware chain:
//
//	recoverPanic → requestID → cors → rateLimit → router → instrument
func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(s.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(s.methodNotAllowedResponse)

	for _, rt := range s.routes() {
		router.Handler(rt.method, rt.path, s.instrument(rt.path, rt.handler))
	}

	router.HandlerFunc(http.MethodGet, "/openapi.json", s.openAPIHandler)
	if s.opts.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	return s.recoverPanic(s.withRequestID(s.cors(s.rateLimit(router))))
}
