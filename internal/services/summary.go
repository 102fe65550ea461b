package services

import (
	"time"

	"github.com/showbox88/GTPinput/internal/core"
)

// Outcome is the result of processing a single rule.
type Outcome string

const (
	OutcomeFired            Outcome = "fired"
	OutcomeSkippedNotDue    Outcome = "skipped_not_due"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeError            Outcome = "error"
)

// RuleOutcome describes what happened to one rule during a pass.
type RuleOutcome struct {
	RuleID   int64      `json:"rule_id,omitempty"`
	RuleName string     `json:"rule_name"`
	Outcome  Outcome    `json:"outcome"`
	Amount   core.Money `json:"amount"`
	DueDate  core.Date  `json:"due_date"`
	EntryID  int64      `json:"entry_id,omitempty"`
	Detail   string     `json:"detail,omitempty"`
	Err      error      `json:"-"`
}

// Summary lists every rule outcome of one pass, in processing order.
type Summary struct {
	RunID    string        `json:"run_id"`
	OwnerID  string        `json:"owner_id"`
	RunAt    time.Time     `json:"run_at"`
	Outcomes []RuleOutcome `json:"outcomes"`
}

func (s *Summary) record(o RuleOutcome) {
	s.Outcomes = append(s.Outcomes, o)
}

func (s Summary) filter(keep func(Outcome) bool) []RuleOutcome {
	var out []RuleOutcome
	for _, o := range s.Outcomes {
		if keep(o.Outcome) {
			out = append(out, o)
		}
	}
	return out
}

// Fired returns the rules that created a ledger entry.
func (s Summary) Fired() []RuleOutcome {
	return s.filter(func(o Outcome) bool { return o == OutcomeFired })
}

// Skipped returns rules that were not due or already recorded this cycle.
func (s Summary) Skipped() []RuleOutcome {
	return s.filter(func(o Outcome) bool {
		return o == OutcomeSkippedNotDue || o == OutcomeSkippedDuplicate
	})
}

// Errors returns the rules that failed.
func (s Summary) Errors() []RuleOutcome {
	return s.filter(func(o Outcome) bool { return o == OutcomeError })
}

// Count returns how many rules ended with the given outcome.
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, ro := range s.Outcomes {
		if ro.Outcome == o {
			n++
		}
	}
	return n
}
