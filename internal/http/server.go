package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/showbox88/GTPinput/internal/core"
	"github.com/showbox88/GTPinput/internal/log"
	"github.com/showbox88/GTPinput/internal/middleware/ratelimit"
	"github.com/showbox88/GTPinput/internal/middleware/security"
	"github.com/showbox88/GTPinput/internal/middleware/trace"
	"github.com/showbox88/GTPinput/internal/services"
)

// Processor runs one recurring pass for one owner.
type Processor interface {
	ProcessDueObligations(ctx context.Context, ownerID string, now time.Time) (services.Summary, error)
}

// Store is the read and write surface the API needs beyond the processor.
type Store interface {
	services.RuleStore
	services.OwnerLister
	CreateRule(ctx context.Context, r core.RecurringRule) (int64, error)
	SetRuleActive(ctx context.Context, id int64, active bool) error
	UpdateRule(ctx context.Context, r core.RecurringRule) error
	DeleteRule(ctx context.Context, id int64) error
	ListEntries(ctx context.Context, ownerID string) ([]core.LedgerEntry, error)
}

// Options tunes the server. Location is required; other zero values pick
// defaults.
type Options struct {
	Location       *time.Location
	StoreTimeout   time.Duration
	RateLimit      ratelimit.Config
	TrustedProxies []string
}

type Server struct {
	http.Server
	processor Processor
	store     Store
	location  *time.Location
	timeout   time.Duration
	now       func() time.Time
	logger    *log.Logger

	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	shutdownOnce sync.Once
}

var errNoLocation = errors.New("http server: location is required")

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, processor Processor, store Store, opts Options, logger *log.Logger) (*Server, error) {
	if opts.Location == nil {
		return nil, errNoLocation
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}

	ips := security.NewClientIPExtractor()
	for _, cidr := range opts.TrustedProxies {
		if err := ips.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}

	mux := http.NewServeMux()
	s := &Server{
		processor: processor,
		store:     store,
		location:  opts.Location,
		timeout:   opts.StoreTimeout,
		now:       time.Now,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		tracer:    trace.NewMiddleware(logger, ips.Extract),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/api/recurring/run", s.handleRun)
	mux.HandleFunc("/api/rules", s.handleRules)
	mux.HandleFunc("/api/rules/active", s.handleRuleActive)
	mux.HandleFunc("/api/entries", s.handleEntries)

	var h http.Handler = mux
	h = s.limiter.Middleware(ips.Extract, http.MethodPost)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Metrics returns request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown gracefully shuts down the server and the limiter cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the store answers an owner listing.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if _, err := s.store.ListRuleOwners(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
