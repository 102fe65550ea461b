package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showbox88/GTPinput/internal/core"
	"github.com/showbox88/GTPinput/internal/storage/memory"
)

const owner = "user-1"

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 30, 0, 0, time.UTC)
}

func newProcessor(rules RuleStore, ledger LedgerStore) *RecurringProcessor {
	return NewRecurringProcessor(rules, ledger, DefaultRecurringProcessorConfig(time.UTC))
}

func mustCreateRule(t *testing.T, store *memory.Store, name string, cents int64, cat core.Category, freq core.Frequency, anchor int) int64 {
	t.Helper()
	id, err := store.CreateRule(context.Background(), core.RecurringRule{
		OwnerID:  owner,
		Name:     name,
		Amount:   core.Money{Cents: cents},
		Category: cat,
		Schedule: core.Schedule{Frequency: freq, Anchor: anchor},
		Active:   true,
	})
	require.NoError(t, err)
	return id
}

func TestProcessDueObligations_EndToEndMonthly(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mustCreateRule(t, store, "Netflix", 1500, core.CategoryEntertainment, core.Monthly, 1)
	p := newProcessor(store, store)

	first, err := p.ProcessDueObligations(ctx, owner, at(2024, time.March, 5))
	require.NoError(t, err)
	require.Len(t, first.Outcomes, 1)
	assert.Equal(t, OutcomeFired, first.Outcomes[0].Outcome)
	assert.Equal(t, "Netflix", first.Outcomes[0].RuleName)
	assert.Equal(t, int64(1500), first.Outcomes[0].Amount.Cents)

	entries := store.Entries(owner)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-03-01", entries[0].Date.String())
	assert.Equal(t, "Netflix", entries[0].Item)
	assert.Equal(t, int64(1500), entries[0].Amount.Cents)
	assert.Equal(t, core.CategoryEntertainment, entries[0].Category)
	assert.Equal(t, core.SourceRecurringRule, entries[0].Source)
	assert.Equal(t, AutoNote(core.Monthly), entries[0].Note)

	again, err := p.ProcessDueObligations(ctx, owner, at(2024, time.March, 5))
	require.NoError(t, err)
	require.Len(t, again.Outcomes, 1)
	assert.Equal(t, OutcomeSkippedDuplicate, again.Outcomes[0].Outcome)
	assert.Len(t, store.Entries(owner), 1)

	april, err := p.ProcessDueObligations(ctx, owner, at(2024, time.April, 2))
	require.NoError(t, err)
	require.Len(t, april.Fired(), 1)
	entries = store.Entries(owner)
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-04-01", entries[1].Date.String())
}

func TestProcessDueObligations_MonthEndClamping(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"non-leap february", at(2023, time.February, 28), "2023-02-28"},
		{"leap february", at(2024, time.February, 29), "2024-02-29"},
		{"thirty day month", at(2024, time.April, 30), "2024-04-30"},
		{"june thirtieth", at(2024, time.June, 30), "2024-06-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			mustCreateRule(t, store, "Rent", 90000, core.CategoryHousing, core.Monthly, 31)

			summary, err := newProcessor(store, store).ProcessDueObligations(context.Background(), owner, tt.now)
			require.NoError(t, err)
			require.Len(t, summary.Fired(), 1)
			assert.Equal(t, tt.want, summary.Fired()[0].DueDate.String())

			entries := store.Entries(owner)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.want, entries[0].Date.String())
		})
	}
}

func TestProcessDueObligations_MonthEndNotReachedEarly(t *testing.T) {
	store := memory.New()
	mustCreateRule(t, store, "Rent", 90000, core.CategoryHousing, core.Monthly, 31)

	summary, err := newProcessor(store, store).ProcessDueObligations(context.Background(), owner, at(2024, time.February, 28))
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, OutcomeSkippedNotDue, summary.Outcomes[0].Outcome)
	assert.Empty(t, store.Entries(owner))
}

func TestProcessDueObligations_WeeklyFriday(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mustCreateRule(t, store, "Cleaner", 4000, core.CategoryHousing, core.Weekly, 4)
	p := newProcessor(store, store)

	monday, err := p.ProcessDueObligations(ctx, owner, at(2024, time.March, 4))
	require.NoError(t, err)
	require.Len(t, monday.Outcomes, 1)
	assert.Equal(t, OutcomeSkippedNotDue, monday.Outcomes[0].Outcome)
	assert.Contains(t, monday.Outcomes[0].Detail, "Friday")

	var outcomes []Outcome
	for day := 8; day <= 10; day++ {
		s, err := p.ProcessDueObligations(ctx, owner, at(2024, time.March, day))
		require.NoError(t, err)
		require.Len(t, s.Outcomes, 1)
		outcomes = append(outcomes, s.Outcomes[0].Outcome)
	}
	assert.Equal(t, []Outcome{OutcomeFired, OutcomeSkippedDuplicate, OutcomeSkippedDuplicate}, outcomes)

	entries := store.Entries(owner)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-03-08", entries[0].Date.String())

	// First pass of the following week happens on Sunday; the entry is
	// back-dated to that week's Friday.
	next, err := p.ProcessDueObligations(ctx, owner, at(2024, time.March, 17))
	require.NoError(t, err)
	require.Len(t, next.Fired(), 1)
	assert.Equal(t, "2024-03-15", next.Fired()[0].DueDate.String())
}

func TestProcessDueObligations_YearlyNeverFires(t *testing.T) {
	store := memory.New()
	mustCreateRule(t, store, "Insurance", 50000, core.CategoryOther, core.Yearly, 1)

	summary, err := newProcessor(store, store).ProcessDueObligations(context.Background(), owner, at(2024, time.December, 31))
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, OutcomeSkippedNotDue, summary.Outcomes[0].Outcome)
	assert.Empty(t, store.Entries(owner))
}

func TestProcessDueObligations_InactiveRulesAreInvisible(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	id := mustCreateRule(t, store, "Gym", 3000, core.CategoryOther, core.Monthly, 1)
	mustCreateRule(t, store, "Phone", 2000, core.CategoryOther, core.Monthly, 1)
	require.NoError(t, store.SetRuleActive(ctx, id, false))

	active, err := store.ListActiveRules(ctx, owner)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Phone", active[0].Name)

	summary, err := newProcessor(store, store).ProcessDueObligations(ctx, owner, at(2024, time.March, 5))
	require.NoError(t, err)
	for _, o := range summary.Outcomes {
		assert.NotEqual(t, "Gym", o.RuleName)
	}
	assert.Len(t, summary.Outcomes, 1)
}

func TestProcessDueObligations_AmountEditDoesNotRefire(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	id := mustCreateRule(t, store, "Spotify", 999, core.CategoryEntertainment, core.Monthly, 1)
	p := newProcessor(store, store)

	_, err := p.ProcessDueObligations(ctx, owner, at(2024, time.March, 2))
	require.NoError(t, err)

	require.NoError(t, store.UpdateRule(ctx, core.RecurringRule{
		ID: id, OwnerID: owner, Name: "Spotify", Amount: core.Money{Cents: 1199},
		Category: core.CategoryEntertainment, Schedule: core.Schedule{Frequency: core.Monthly, Anchor: 1}, Active: true,
	}))

	summary, err := p.ProcessDueObligations(ctx, owner, at(2024, time.March, 20))
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, OutcomeSkippedDuplicate, summary.Outcomes[0].Outcome)
	entries := store.Entries(owner)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(999), entries[0].Amount.Cents)

	// the new amount applies from the next cycle
	summary, err = p.ProcessDueObligations(ctx, owner, at(2024, time.April, 1))
	require.NoError(t, err)
	require.Len(t, summary.Fired(), 1)
	assert.Equal(t, int64(1199), summary.Fired()[0].Amount.Cents)
}

func TestProcessDueObligations_DeletedRuleStopsFiring(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	id := mustCreateRule(t, store, "Gym", 3000, core.CategoryMedical, core.Monthly, 1)
	p := newProcessor(store, store)

	_, err := p.ProcessDueObligations(ctx, owner, at(2024, time.March, 2))
	require.NoError(t, err)
	require.NoError(t, store.DeleteRule(ctx, id))

	summary, err := p.ProcessDueObligations(ctx, owner, at(2024, time.April, 2))
	require.NoError(t, err)
	assert.Empty(t, summary.Outcomes)
	assert.Len(t, store.Entries(owner), 1)
}

func TestProcessDueObligations_ConfigurationErrors(t *testing.T) {
	store := memory.New()
	mustCreateRule(t, store, "Netflix", 1500, core.CategoryEntertainment, core.Monthly, 1)

	tests := []struct {
		name  string
		proc  *RecurringProcessor
		owner string
		now   time.Time
	}{
		{"missing time zone", NewRecurringProcessor(store, store, RecurringProcessorConfig{}), owner, at(2024, 3, 5)},
		{"empty owner", newProcessor(store, store), "  ", at(2024, 3, 5)},
		{"zero reference time", newProcessor(store, store), owner, time.Time{}},
		{"missing stores", newProcessor(nil, nil), owner, at(2024, 3, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := tt.proc.ProcessDueObligations(context.Background(), tt.owner, tt.now)
			require.ErrorIs(t, err, ErrConfiguration)
			assert.Empty(t, summary.Outcomes)
			assert.Empty(t, store.Entries(owner))
		})
	}
}

func TestProcessDueObligations_UsesConfiguredLocation(t *testing.T) {
	auckland, err := time.LoadLocation("Pacific/Auckland")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	store := memory.New()
	mustCreateRule(t, store, "Netflix", 1500, core.CategoryEntertainment, core.Monthly, 1)
	p := NewRecurringProcessor(store, store, DefaultRecurringProcessorConfig(auckland))

	// Still February 29 in UTC, already March 1 in Auckland.
	summary, err := p.ProcessDueObligations(context.Background(), owner, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, summary.Fired(), 1)
	assert.Equal(t, "2024-03-01", summary.Fired()[0].DueDate.String())
}

func TestProcessDueObligations_InvalidRuleIsScoped(t *testing.T) {
	rules := staticRules{
		{ID: 1, OwnerID: owner, Name: "Broken", Amount: core.Money{Cents: 100}, Category: core.CategoryOther, Schedule: core.Schedule{Frequency: core.Weekly, Anchor: 9}, Active: true},
		{ID: 2, OwnerID: owner, Name: "Netflix", Amount: core.Money{Cents: 1500}, Category: core.CategoryEntertainment, Schedule: core.Schedule{Frequency: core.Monthly, Anchor: 1}, Active: true},
	}
	ledger := memory.New()

	summary, err := newProcessor(rules, ledger).ProcessDueObligations(context.Background(), owner, at(2024, 3, 5))
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, OutcomeError, summary.Outcomes[0].Outcome)
	assert.ErrorIs(t, summary.Outcomes[0].Err, ErrInvalidRule)
	assert.ErrorIs(t, summary.Outcomes[0].Err, core.ErrInvalidAnchor)
	assert.Equal(t, OutcomeFired, summary.Outcomes[1].Outcome)
	assert.Len(t, ledger.Entries(owner), 1)
}

func TestProcessDueObligations_StoreFailureIsScoped(t *testing.T) {
	store := memory.New()
	mustCreateRule(t, store, "Netflix", 1500, core.CategoryEntertainment, core.Monthly, 1)
	mustCreateRule(t, store, "Rent", 90000, core.CategoryHousing, core.Monthly, 1)
	ledger := &faultyLedger{Store: store, failItem: "Netflix"}

	summary, err := newProcessor(store, ledger).ProcessDueObligations(context.Background(), owner, at(2024, 3, 5))
	require.NoError(t, err)
	require.Len(t, summary.Errors(), 1)
	assert.Equal(t, "Netflix", summary.Errors()[0].RuleName)
	assert.ErrorIs(t, summary.Errors()[0].Err, ErrStoreUnavailable)
	require.Len(t, summary.Fired(), 1)
	assert.Equal(t, "Rent", summary.Fired()[0].RuleName)
}

func TestProcessDueObligations_RuleListingFailure(t *testing.T) {
	summary, err := newProcessor(failingRules{}, memory.New()).ProcessDueObligations(context.Background(), owner, at(2024, 3, 5))
	require.NoError(t, err)
	require.Len(t, summary.Errors(), 1)
	assert.ErrorIs(t, summary.Errors()[0].Err, ErrStoreUnavailable)
}

func TestProcessDueObligations_TimeoutIsPerRule(t *testing.T) {
	store := memory.New()
	mustCreateRule(t, store, "Slow", 100, core.CategoryOther, core.Monthly, 1)
	mustCreateRule(t, store, "Fast", 200, core.CategoryOther, core.Monthly, 1)
	ledger := &faultyLedger{Store: store, hangItem: "Slow"}

	cfg := DefaultRecurringProcessorConfig(time.UTC)
	cfg.StoreTimeout = 20 * time.Millisecond
	summary, err := NewRecurringProcessor(store, ledger, cfg).ProcessDueObligations(context.Background(), owner, at(2024, 3, 5))
	require.NoError(t, err)

	require.Len(t, summary.Errors(), 1)
	assert.Equal(t, "Slow", summary.Errors()[0].RuleName)
	assert.ErrorIs(t, summary.Errors()[0].Err, context.DeadlineExceeded)
	require.Len(t, summary.Fired(), 1)
	assert.Equal(t, "Fast", summary.Fired()[0].RuleName)
}

func TestProcessDueObligations_ConcurrentInvocationsCreateOneEntry(t *testing.T) {
	for _, callers := range []int{2, 4, 16} {
		for _, now := range []time.Time{at(2024, 3, 31), at(2023, 2, 28), at(2024, 3, 9)} {
			t.Run(fmt.Sprintf("%d callers on %s", callers, now.Format("2006-01-02")), func(t *testing.T) {
				store := memory.New()
				mustCreateRule(t, store, "Rent", 90000, core.CategoryHousing, core.Monthly, 31)
				mustCreateRule(t, store, "Cleaner", 4000, core.CategoryHousing, core.Weekly, 4)

				summaries, due := runRace(t, store, callers, now)

				fired := 0
				for _, s := range summaries {
					assert.Empty(t, s.Errors())
					fired += len(s.Fired())
				}
				entries := store.Entries(owner)
				assert.Equal(t, due, len(entries))
				assert.Equal(t, due, fired)
				seen := map[string]int{}
				for _, e := range entries {
					seen[e.Item+"|"+e.Date.String()]++
				}
				for sig, n := range seen {
					assert.Equal(t, 1, n, "duplicate entry for %s", sig)
				}
			})
		}
	}
}

// runRace starts callers passes that all read an empty ledger before any of
// them inserts. It returns the summaries and the number of due rules.
func runRace(t *testing.T, store *memory.Store, callers int, now time.Time) ([]Summary, int) {
	t.Helper()
	rules, err := store.ListActiveRules(context.Background(), owner)
	require.NoError(t, err)

	due := 0
	for _, r := range rules {
		if ok, _ := TriggerReached(r.Schedule, now); ok {
			due++
		}
	}
	p := newProcessor(store, newBarrierLedger(store, callers))

	summaries := make([]Summary, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := p.ProcessDueObligations(context.Background(), owner, now)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
			}
			summaries[i] = s
		}(i)
	}
	wg.Wait()
	return summaries, due
}

// barrierLedger holds FindEntries for a given item until every caller has
// read it, forcing the check-then-insert race.
type barrierLedger struct {
	*memory.Store
	callers int
	mu      sync.Mutex
	gates   map[string]*gate
}

type gate struct {
	pending int
	release chan struct{}
}

func newBarrierLedger(store *memory.Store, callers int) *barrierLedger {
	return &barrierLedger{Store: store, callers: callers, gates: map[string]*gate{}}
}

func (b *barrierLedger) FindEntries(ctx context.Context, q core.EntryQuery) ([]core.LedgerEntry, error) {
	entries, err := b.Store.FindEntries(ctx, q)

	b.mu.Lock()
	g, ok := b.gates[q.Item]
	if !ok {
		g = &gate{pending: b.callers, release: make(chan struct{})}
		b.gates[q.Item] = g
	}
	g.pending--
	if g.pending == 0 {
		close(g.release)
	}
	b.mu.Unlock()

	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return entries, err
}

type staticRules []core.RecurringRule

func (s staticRules) ListActiveRules(_ context.Context, ownerID string) ([]core.RecurringRule, error) {
	var out []core.RecurringRule
	for _, r := range s {
		if r.OwnerID == ownerID && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

type failingRules struct{}

func (failingRules) ListActiveRules(context.Context, string) ([]core.RecurringRule, error) {
	return nil, errors.New("connection refused")
}

// faultyLedger fails or hangs lookups for one item.
type faultyLedger struct {
	*memory.Store
	failItem string
	hangItem string
}

func (f *faultyLedger) FindEntries(ctx context.Context, q core.EntryQuery) ([]core.LedgerEntry, error) {
	switch q.Item {
	case f.failItem:
		return nil, errors.New("connection reset by peer")
	case f.hangItem:
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.Store.FindEntries(ctx, q)
}
