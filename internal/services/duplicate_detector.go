package services

import (
	"context"
	"fmt"

	"github.com/showbox88/GTPinput/internal/core"
)

// DuplicateDetector checks whether a rule already produced a ledger entry in
// the current cycle. The match signature is owner, item and category with a
// date inside the window; amount is not part of it, so editing a rule's
// amount after it fired does not fire it again in the same cycle.
type DuplicateDetector struct {
	ledger LedgerStore
}

func NewDuplicateDetector(ledger LedgerStore) *DuplicateDetector {
	return &DuplicateDetector{ledger: ledger}
}

// AlreadyFired returns true if an entry matching the rule exists in window.
func (d *DuplicateDetector) AlreadyFired(ctx context.Context, rule core.RecurringRule, window core.Window) (bool, error) {
	entries, err := d.ledger.FindEntries(ctx, core.EntryQuery{
		OwnerID:  rule.OwnerID,
		Item:     rule.Name,
		Category: rule.Category,
		Window:   window,
	})
	if err != nil {
		return false, fmt.Errorf("find entries: %w", err)
	}

	// Re-check the signature; stores may filter loosely.
	for _, e := range entries {
		if e.OwnerID == rule.OwnerID && e.Item == rule.Name && e.Category == rule.Category && window.Contains(e.Date) {
			return true, nil
		}
	}
	return false, nil
}
