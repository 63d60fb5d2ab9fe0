package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"taskboard/internal/core"
	"taskboard/internal/log"
	"taskboard/internal/middleware/ratelimit"
	"taskboard/internal/middleware/security"
	"taskboard/internal/middleware/trace"
	"taskboard/internal/ports"
)

// Services consumed by the handlers.
type (
	TodoManager interface {
		Create(ctx context.Context, in core.TodoInput) (core.Todo, error)
		List(ctx context.Context) ([]core.Todo, error)
		Get(ctx context.Context, id int64) (core.Todo, error)
		Update(ctx context.Context, id int64, p core.TodoPatch) (core.Todo, error)
		Toggle(ctx context.Context, id int64) (core.Todo, error)
		Delete(ctx context.Context, id int64) error
	}

	CategoryManager interface {
		Create(ctx context.Context, in core.CategoryInput) (core.Category, error)
		List(ctx context.Context) ([]core.Category, error)
		Get(ctx context.Context, id int64) (core.Category, error)
		Update(ctx context.Context, id int64, p core.CategoryPatch) (core.Category, error)
		Delete(ctx context.Context, id int64) error
		Stats(ctx context.Context) (core.CategoryStats, error)
	}

	StatsReporter interface {
		Report(ctx context.Context) (core.StatsReport, error)
	}

	// HealthChecker is probed by /readyz.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

// Deps groups the collaborators of the server. Snapshots and Health are
// optional.
type Deps struct {
	Todos      TodoManager
	Categories CategoryManager
	Stats      StatsReporter
	Snapshots  ports.StatsSnapshotStore
	Health     HealthChecker

	Logger *log.Logger
	// Location resolves bare YYYY-MM-DD due dates (default: UTC).
	Location  *time.Location
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	logger     *log.Logger
	todos      TodoManager
	categories CategoryManager
	stats      StatsReporter
	snapshots  ports.StatsSnapshotStore
	health     HealthChecker
	location   *time.Location

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		logger:           logger,
		todos:            deps.Todos,
		categories:       deps.Categories,
		stats:            deps.Stats,
		snapshots:        deps.Snapshots,
		health:           deps.Health,
		location:         loc,
		rateLimiter:      ratelimit.NewLimiter(deps.RateLimit),
		securityDetector: security.NewDetector(),
		started:          time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /todos", s.handleListTodos)
	mux.HandleFunc("POST /todos", s.handleCreateTodo)
	mux.HandleFunc("GET /todos/stats", s.handleTodoStats)
	mux.HandleFunc("GET /todos/stats/latest", s.handleLatestSnapshot)
	mux.HandleFunc("GET /todos/{id}", s.handleGetTodo)
	mux.HandleFunc("PATCH /todos/{id}", s.handleUpdateTodo)
	mux.HandleFunc("DELETE /todos/{id}", s.handleDeleteTodo)
	mux.HandleFunc("PATCH /todos/{id}/toggle", s.handleToggleTodo)

	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("POST /categories", s.handleCreateCategory)
	mux.HandleFunc("GET /categories/stats", s.handleCategoryStats)
	mux.HandleFunc("GET /categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PATCH /categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /categories/{id}", s.handleDeleteCategory)

	s.Handler = s.chain(mux)
	return s
}

// chain wraps the mux, outermost first: trace, request logger, request
// screening, security headers, rate limiting of writes.
func (s *Server) chain(h http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit,
		http.MethodPost, http.MethodPatch, http.MethodDelete)
	h = limited(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.securityDetector.Middleware(s.logger)(h)
	h = log.Middleware(s.logger, trace.GetRequestID)(h)
	return s.traceMiddleware.Middleware(h)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, retry later").Write(w)
}

// fail writes the response for err and logs it; client errors at warn,
// everything else at error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, component, op string) {
	resp := errorResponseFor(err)
	logger := log.FromContext(r.Context()).WithComponent(component)
	fields := log.NewFields().WithOperation(op).WithError(err)
	fields[log.FieldStatusCode] = resp.statusCode
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	resp.Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
