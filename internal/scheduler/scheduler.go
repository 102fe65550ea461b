// Package scheduler runs the recurring obligation pass for every owner on a
// cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/showbox88/GTPinput/internal/log"
	"github.com/showbox88/GTPinput/internal/services"
)

// Processor runs one pass for one owner.
type Processor interface {
	ProcessDueObligations(ctx context.Context, ownerID string, now time.Time) (services.Summary, error)
}

// Config holds scheduler configuration
type Config struct {
	// Spec is a six field cron expression (with seconds)
	Spec string

	// Location is the zone cron fires in and passes are computed in
	Location *time.Location

	// Concurrency bounds how many owners are processed at once (default: 4)
	Concurrency int

	// ListTimeout bounds the owner listing call (default: 5s)
	ListTimeout time.Duration
}

// Scheduler manages the cron trigger.
type Scheduler struct {
	cron       *cron.Cron
	owners     services.OwnerLister
	processor  Processor
	config     Config
	logger     *log.Logger
	structured *log.StructuredLogger
	now        func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler and registers the pass under cfg.Spec.
func New(owners services.OwnerLister, processor Processor, cfg Config, logger *log.Logger) (*Scheduler, error) {
	if owners == nil || processor == nil {
		return nil, errors.New("scheduler requires an owner lister and a processor")
	}
	if cfg.Location == nil {
		return nil, fmt.Errorf("%w: time zone is not configured", services.ErrConfiguration)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentScheduler)

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		owners:     owners,
		processor:  processor,
		config:     cfg,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
		now:        time.Now,
		ctx:        context.Background(),
	}

	if _, err := s.cron.AddFunc(cfg.Spec, s.tick); err != nil {
		return nil, fmt.Errorf("register recurring task %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start starts the cron scheduler. Passes triggered by cron use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started", "spec", s.config.Spec, "timezone", s.config.Location.String())
}

// Stop stops the cron scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-done.Done()
	s.logger.Info("Scheduler stopped")
}

// Next returns the next time the pass will fire.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.RunAll(ctx, s.now()); err != nil {
		s.structured.LogError(ctx, "Scheduled recurring run failed", err, log.ComponentScheduler, log.OpProcess, nil)
	}
}

// RunAll processes every owner that has active rules, at most
// Config.Concurrency at a time. Summaries are returned in owner order. The
// error is non-nil when owners could not be listed or a pass was rejected
// for configuration reasons; the remaining owners are still processed.
func (s *Scheduler) RunAll(ctx context.Context, now time.Time) ([]services.Summary, error) {
	listCtx, cancel := context.WithTimeout(ctx, s.config.ListTimeout)
	owners, err := s.owners.ListRuleOwners(listCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: list rule owners: %w", services.ErrStoreUnavailable, err)
	}

	s.logger.InfoContext(ctx, "Starting recurring run", "owners", len(owners), "concurrency", s.config.Concurrency)

	summaries := make([]services.Summary, len(owners))
	errs := make([]error, len(owners))

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, owner := range owners {
		i, owner := i, owner
		g.Go(func() error {
			summary, err := s.processor.ProcessDueObligations(ctx, owner, now)
			if err != nil {
				errs[i] = fmt.Errorf("owner %s: %w", owner, err)
				return nil
			}
			summaries[i] = summary
			s.structured.LogRunSummary(ctx, summary.RunID, owner,
				summary.Count(services.OutcomeFired), len(summary.Skipped()), summary.Count(services.OutcomeError))
			return nil
		})
	}
	g.Wait()

	var out []services.Summary
	for i := range owners {
		if errs[i] == nil {
			out = append(out, summaries[i])
		}
	}
	return out, errors.Join(errs...)
}

// cronLogger routes robfig/cron's logging through the application logger.
type cronLogger struct {
	logger *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error("cron: "+msg, append(keysAndValues, log.FieldError, err)...)
}
