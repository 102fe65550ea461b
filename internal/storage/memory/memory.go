package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/showbox88/GTPinput/internal/core"
)

// Store keeps rules and ledger entries in process memory. It enforces the
// same recurring entry uniqueness as the SQLite schema.
type Store struct {
	mu      sync.Mutex
	rules   []core.RecurringRule
	entries []core.LedgerEntry
	nextID  int64
	now     func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

// seedFile is the YAML layout accepted by NewFromFile.
type seedFile struct {
	Rules []struct {
		Owner     string `yaml:"owner"`
		Name      string `yaml:"name"`
		Amount    string `yaml:"amount"`
		Category  string `yaml:"category"`
		Frequency string `yaml:"frequency"`
		Anchor    int    `yaml:"anchor"`
		Active    *bool  `yaml:"active"`
	} `yaml:"rules"`
}

// NewFromFile seeds a store from a YAML rules file. An empty path or a
// missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, r := range seed.Rules {
		amount, err := core.MoneyFromDecimal(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("rule %d: amount %q: %w", i, r.Amount, err)
		}
		freq, err := core.ParseFrequency(r.Frequency)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		active := r.Active == nil || *r.Active
		if _, err := s.CreateRule(context.Background(), core.RecurringRule{
			OwnerID:  r.Owner,
			Name:     r.Name,
			Amount:   amount,
			Category: core.Category(r.Category),
			Schedule: core.Schedule{Frequency: freq, Anchor: r.Anchor},
			Active:   active,
		}); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return s, nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateRule stores a validated rule and returns its id.
func (s *Store) CreateRule(_ context.Context, r core.RecurringRule) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.rules = append(s.rules, r)
	return r.ID, nil
}

// SetRuleActive toggles a rule on or off.
func (s *Store) SetRuleActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules[i].Active = active
			return nil
		}
	}
	return fmt.Errorf("%w: %d", core.ErrRuleNotFound, id)
}

// UpdateRule replaces the editable fields of an existing rule of the same
// owner.
func (s *Store) UpdateRule(_ context.Context, r core.RecurringRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == r.ID && s.rules[i].OwnerID == r.OwnerID {
			r.CreatedAt = s.rules[i].CreatedAt
			s.rules[i] = r
			return nil
		}
	}
	return fmt.Errorf("%w: %d", core.ErrRuleNotFound, r.ID)
}

// DeleteRule removes a rule; its generated entries are kept.
func (s *Store) DeleteRule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", core.ErrRuleNotFound, id)
}

// ListActiveRules implements services.RuleStore.
func (s *Store) ListActiveRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringRule
	for _, r := range s.rules {
		if r.Active && r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRuleOwners implements services.OwnerLister.
func (s *Store) ListRuleOwners(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, r := range s.rules {
		if _, ok := seen[r.OwnerID]; ok || !r.Active {
			continue
		}
		seen[r.OwnerID] = struct{}{}
		out = append(out, r.OwnerID)
	}
	sort.Strings(out)
	return out, nil
}

// FindEntries implements services.LedgerStore.
func (s *Store) FindEntries(ctx context.Context, q core.EntryQuery) ([]core.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range s.entries {
		if e.OwnerID == q.OwnerID && e.Item == q.Item && e.Category == q.Category && q.Window.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

// InsertEntry implements services.LedgerStore. The uniqueness check and the
// append happen under one lock.
func (s *Store) InsertEntry(ctx context.Context, e core.LedgerEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Source == core.SourceRecurringRule {
		for _, x := range s.entries {
			if x.Source == core.SourceRecurringRule && sameSignature(x, e) {
				return 0, core.ErrDuplicateEntry
			}
		}
	}
	e.ID = s.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.entries = append(s.entries, e)
	return e.ID, nil
}

// Entries returns a copy of the owner's ledger in insertion order.
func (s *Store) Entries(ownerID string) []core.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range s.entries {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out
}

func sameSignature(a, b core.LedgerEntry) bool {
	return a.OwnerID == b.OwnerID &&
		a.Item == b.Item &&
		a.Category == b.Category &&
		a.Date.String() == b.Date.String()
}

// ListEntries returns the owner's ledger ordered by date, then id, as the
// SQLite store does.
func (s *Store) ListEntries(ctx context.Context, ownerID string) ([]core.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := s.Entries(ownerID)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
