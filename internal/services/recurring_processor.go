package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/showbox88/GTPinput/internal/core"
)

// RecurringProcessorConfig holds configuration for the recurring processor
type RecurringProcessorConfig struct {
	// Location is the time zone cycles are computed in. Required.
	Location *time.Location

	// StoreTimeout bounds every single store call (default: 5s)
	StoreTimeout time.Duration
}

// DefaultRecurringProcessorConfig returns defaults for everything but the
// location, which must always be supplied by the caller.
func DefaultRecurringProcessorConfig(loc *time.Location) RecurringProcessorConfig {
	return RecurringProcessorConfig{
		Location:     loc,
		StoreTimeout: 5 * time.Second,
	}
}

// RecurringProcessor creates ledger entries for recurring rules that are due
// in the current cycle.
type RecurringProcessor struct {
	rules    RuleStore
	ledger   LedgerStore
	detector *DuplicateDetector
	config   RecurringProcessorConfig
}

// NewRecurringProcessor creates a new recurring rule processor
func NewRecurringProcessor(rules RuleStore, ledger LedgerStore, config RecurringProcessorConfig) *RecurringProcessor {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 5 * time.Second
	}
	return &RecurringProcessor{
		rules:    rules,
		ledger:   ledger,
		detector: NewDuplicateDetector(ledger),
		config:   config,
	}
}

// ProcessDueObligations runs one sequential pass over the owner's active
// rules at the reference instant now. The returned error is non-nil only for
// configuration problems, in which case no rule has been touched; every rule
// level failure is reported in the Summary instead.
func (p *RecurringProcessor) ProcessDueObligations(ctx context.Context, ownerID string, now time.Time) (Summary, error) {
	if err := p.checkConfig(ownerID, now); err != nil {
		return Summary{}, err
	}

	now = now.In(p.config.Location)
	summary := Summary{
		RunID:   uuid.NewString(),
		OwnerID: ownerID,
		RunAt:   now,
	}

	listCtx, cancel := context.WithTimeout(ctx, p.config.StoreTimeout)
	rules, err := p.rules.ListActiveRules(listCtx, ownerID)
	cancel()
	if err != nil {
		err = fmt.Errorf("%w: list active rules: %w", ErrStoreUnavailable, err)
		slog.ErrorContext(ctx, "Failed to list active recurring rules",
			"run_id", summary.RunID,
			"owner_id", ownerID,
			"error", err)
		summary.record(RuleOutcome{Outcome: OutcomeError, Detail: err.Error(), Err: err})
		return summary, nil
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"run_id", summary.RunID,
		"owner_id", ownerID,
		"total_active", len(rules),
		"processing_date", now.Format("2006-01-02"),
		"timezone", p.config.Location.String())

	for _, rule := range rules {
		if !rule.Active || rule.OwnerID != ownerID {
			continue
		}
		outcome := p.processRule(ctx, rule, now)
		p.logOutcome(ctx, summary.RunID, rule, outcome)
		summary.record(outcome)
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"run_id", summary.RunID,
		"owner_id", ownerID,
		"fired", summary.Count(OutcomeFired),
		"skipped", len(summary.Skipped()),
		"errors", summary.Count(OutcomeError),
		"total_checked", len(summary.Outcomes))

	return summary, nil
}

func (p *RecurringProcessor) checkConfig(ownerID string, now time.Time) error {
	var problems []string
	if p.rules == nil || p.ledger == nil {
		problems = append(problems, "processor not properly initialized")
	}
	if p.config.Location == nil {
		problems = append(problems, "time zone is not configured")
	}
	if strings.TrimSpace(ownerID) == "" {
		problems = append(problems, "owner id is empty")
	}
	if now.IsZero() {
		problems = append(problems, "reference time is zero")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func (p *RecurringProcessor) processRule(ctx context.Context, rule core.RecurringRule, now time.Time) RuleOutcome {
	out := RuleOutcome{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Amount:   rule.Amount,
	}

	if err := rule.Validate(); err != nil {
		return failed(out, fmt.Errorf("%w: %w", ErrInvalidRule, err))
	}

	cadence, err := GetCadence(rule.Schedule.Frequency)
	if err != nil {
		return failed(out, fmt.Errorf("%w: %w", ErrInvalidRule, err))
	}
	window := cadence.Window(now)

	if rule.Schedule.Frequency == core.Yearly {
		out.Outcome = OutcomeSkippedNotDue
		out.Detail = "yearly rules are not scheduled automatically"
		return out
	}

	if !cadence.Reached(rule.Schedule.Anchor, now) {
		out.Outcome = OutcomeSkippedNotDue
		out.Detail = notDueDetail(rule.Schedule)
		return out
	}

	detectCtx, cancel := context.WithTimeout(ctx, p.config.StoreTimeout)
	fired, err := p.detector.AlreadyFired(detectCtx, rule, window)
	cancel()
	if err != nil {
		return failed(out, fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	}
	if fired {
		out.Outcome = OutcomeSkippedDuplicate
		out.Detail = "already recorded for " + window.String()
		return out
	}

	due, ok := cadence.DueDate(rule.Schedule.Anchor, window)
	if !ok {
		out.Outcome = OutcomeSkippedNotDue
		out.Detail = "no due date in cycle " + window.String()
		return out
	}
	out.DueDate = due

	entry := core.LedgerEntry{
		OwnerID:  rule.OwnerID,
		Date:     due,
		Item:     rule.Name,
		Amount:   rule.Amount,
		Category: rule.Category,
		Note:     AutoNote(rule.Schedule.Frequency),
		Source:   core.SourceRecurringRule,
	}

	insertCtx, cancel := context.WithTimeout(ctx, p.config.StoreTimeout)
	id, err := p.ledger.InsertEntry(insertCtx, entry)
	cancel()
	switch {
	case errors.Is(err, core.ErrDuplicateEntry):
		out.Outcome = OutcomeSkippedDuplicate
		out.Detail = "already recorded for " + due.String()
		return out
	case err != nil:
		return failed(out, fmt.Errorf("%w: insert entry: %w", ErrStoreUnavailable, err))
	}

	out.Outcome = OutcomeFired
	out.EntryID = id
	out.Detail = "added for " + due.String()
	return out
}

func (p *RecurringProcessor) logOutcome(ctx context.Context, runID string, rule core.RecurringRule, out RuleOutcome) {
	attrs := []any{
		"run_id", runID,
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"schedule", rule.Schedule.String(),
		"outcome", string(out.Outcome),
	}
	switch out.Outcome {
	case OutcomeError:
		slog.ErrorContext(ctx, "Failed to process recurring rule", append(attrs, "error", out.Err)...)
	case OutcomeFired:
		slog.InfoContext(ctx, "Created ledger entry from recurring rule",
			append(attrs, "entry_id", out.EntryID, "due_date", out.DueDate.String(), "amount_cents", out.Amount.Cents)...)
	default:
		slog.DebugContext(ctx, "Recurring rule skipped", append(attrs, "detail", out.Detail)...)
	}
}

func failed(out RuleOutcome, err error) RuleOutcome {
	out.Outcome = OutcomeError
	out.Err = err
	out.Detail = err.Error()
	return out
}

// AutoNote is the marker written into the note of generated entries.
func AutoNote(f core.Frequency) string {
	return fmt.Sprintf("auto-generated from recurring rule (%s)", f)
}

func notDueDetail(s core.Schedule) string {
	switch s.Frequency {
	case core.Weekly:
		return fmt.Sprintf("not due until %s", time.Weekday((s.Anchor+1)%7))
	default:
		return fmt.Sprintf("not due until day %d", s.Anchor)
	}
}
