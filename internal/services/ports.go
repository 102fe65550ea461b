package services

import (
	"context"

	"github.com/showbox88/GTPinput/internal/core"
)

// Ports for the persistence collaborators of the scheduler.
type (
	// RuleStore returns the active recurring rules of an owner. Inactive
	// rules are never returned.
	RuleStore interface {
		ListActiveRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error)
	}

	// OwnerLister enumerates owners that have at least one active rule. It is
	// used by unattended triggers that sweep every owner.
	OwnerLister interface {
		ListRuleOwners(ctx context.Context) ([]string, error)
	}

	// LedgerStore reads and appends ledger entries. InsertEntry must return
	// core.ErrDuplicateEntry for a second recurring_rule entry with the same
	// owner, item, category and date.
	LedgerStore interface {
		FindEntries(ctx context.Context, q core.EntryQuery) ([]core.LedgerEntry, error)
		InsertEntry(ctx context.Context, e core.LedgerEntry) (int64, error)
	}

	// EntryPublisher announces newly created ledger entries.
	EntryPublisher interface {
		PublishEntryCreated(ctx context.Context, e core.LedgerEntry) error
	}
)
