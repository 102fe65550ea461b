package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/showbox88/GTPinput/internal/core"
)

// LedgerService writes ledger entries through a LedgerStore and announces
// them on an EntryPublisher. It satisfies LedgerStore itself so the
// processor can use it in place of the bare store.
type LedgerService struct {
	store     LedgerStore
	publisher EntryPublisher
}

func NewLedgerService(store LedgerStore, publisher EntryPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
	}
}

// FindEntries implements LedgerStore
func (s *LedgerService) FindEntries(ctx context.Context, q core.EntryQuery) ([]core.LedgerEntry, error) {
	return s.store.FindEntries(ctx, q)
}

// InsertEntry saves the entry and publishes a created message
func (s *LedgerService) InsertEntry(ctx context.Context, e core.LedgerEntry) (int64, error) {
	// Save first; publishing is best effort
	id, err := s.store.InsertEntry(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save entry: %w", err)
	}
	e.ID = id

	if s.publisher == nil {
		slog.DebugContext(ctx, "No entry publisher configured, skipping created message", "id", id)
		return id, nil
	}

	if err := s.publisher.PublishEntryCreated(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry created message",
			"id", id, "error", err)
		// Don't fail the insert - the entry is stored
	}

	return id, nil
}
