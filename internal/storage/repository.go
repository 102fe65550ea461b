package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/showbox88/GTPinput/internal/core"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// SQLiteRepository persists recurring rules and ledger entries. It
// implements services.RuleStore, services.OwnerLister and
// services.LedgerStore.
type SQLiteRepository struct {
	db  *sql.DB
	loc *time.Location
}

// dsn enables WAL and a busy timeout on every pooled connection.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
}

// NewSQLiteRepository opens (or creates) the database and runs migrations.
// Stored dates are read back as calendar days in loc.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if loc == nil {
		return nil, errors.New("sqlite repository requires a time zone")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, loc: loc}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateRule stores a validated rule and returns its id.
func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurringRule) (int64, error) {
	if err := rule.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_rules (owner_id, name, amount_cents, category, frequency, anchor, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.OwnerID, rule.Name, rule.Amount.Cents, string(rule.Category),
		string(rule.Schedule.Frequency), rule.Schedule.Anchor, boolToInt(rule.Active))
	if err != nil {
		return 0, fmt.Errorf("create rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create rule id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule saved to SQLite",
		"id", id,
		"owner_id", rule.OwnerID,
		"name", rule.Name,
		"schedule", rule.Schedule.String())

	return id, nil
}

// SetRuleActive toggles a rule on or off.
func (r *SQLiteRepository) SetRuleActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recurring_rules SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("update rule active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", core.ErrRuleNotFound, id)
	}
	return nil
}

// UpdateRule replaces the editable fields of an existing rule. The owner
// cannot change; a rule of another owner is reported as not found.
func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurringRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_rules
		 SET name = ?, amount_cents = ?, category = ?, frequency = ?, anchor = ?, active = ?
		 WHERE id = ? AND owner_id = ?`,
		rule.Name, rule.Amount.Cents, string(rule.Category), string(rule.Schedule.Frequency),
		rule.Schedule.Anchor, boolToInt(rule.Active), rule.ID, rule.OwnerID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", core.ErrRuleNotFound, rule.ID)
	}

	slog.InfoContext(ctx, "Recurring rule updated in SQLite",
		"id", rule.ID,
		"owner_id", rule.OwnerID,
		"schedule", rule.Schedule.String())
	return nil
}

// DeleteRule removes a rule. Entries it already generated stay in the ledger.
func (r *SQLiteRepository) DeleteRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", core.ErrRuleNotFound, id)
	}
	return nil
}

// ListActiveRules implements services.RuleStore
func (r *SQLiteRepository) ListActiveRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, amount_cents, category, frequency, anchor, active, created_at
		 FROM recurring_rules
		 WHERE owner_id = ? AND active = 1
		 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurringRule
	for rows.Next() {
		var (
			rule                core.RecurringRule
			category, frequency string
			active              int
			createdAt           string
		)
		if err := rows.Scan(&rule.ID, &rule.OwnerID, &rule.Name, &rule.Amount.Cents,
			&category, &frequency, &rule.Schedule.Anchor, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Category = core.Category(category)
		rule.Schedule.Frequency = core.Frequency(frequency)
		rule.Active = active != 0
		rule.CreatedAt = parseTimestamp(createdAt)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// ListRuleOwners implements services.OwnerLister
func (r *SQLiteRepository) ListRuleOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT owner_id FROM recurring_rules WHERE active = 1 ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list rule owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// FindEntries implements services.LedgerStore
func (r *SQLiteRepository) FindEntries(ctx context.Context, q core.EntryQuery) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, date, item, amount_cents, category, note, source, created_at
		 FROM ledger_entries
		 WHERE owner_id = ? AND item = ? AND category = ? AND date >= ? AND date <= ?
		 ORDER BY date, id`,
		q.OwnerID, q.Item, string(q.Category), q.Window.Start.String(), q.Window.End.String())
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// InsertEntry implements services.LedgerStore. A second recurring_rule entry
// with the same signature and date violates ux_ledger_entries_recurring and
// is reported as core.ErrDuplicateEntry.
func (r *SQLiteRepository) InsertEntry(ctx context.Context, e core.LedgerEntry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	source := e.Source
	if source == "" {
		source = core.SourceManual
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (owner_id, date, item, amount_cents, category, note, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.OwnerID, e.Date.String(), e.Item, e.Amount.Cents, string(e.Category), e.Note, source)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert entry %s on %s: %w", e.Item, e.Date, core.ErrDuplicateEntry)
		}
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert entry id: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entry saved to SQLite",
		"id", id,
		"owner_id", e.OwnerID,
		"item", e.Item,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String(),
		"source", source)

	return id, nil
}

// ListEntries returns all entries of an owner, oldest first.
func (r *SQLiteRepository) ListEntries(ctx context.Context, ownerID string) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, date, item, amount_cents, category, note, source, created_at
		 FROM ledger_entries
		 WHERE owner_id = ?
		 ORDER BY date, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return r.scanEntries(rows)
}

func (r *SQLiteRepository) scanEntries(rows *sql.Rows) ([]core.LedgerEntry, error) {
	var entries []core.LedgerEntry
	for rows.Next() {
		var (
			e                          core.LedgerEntry
			date, category, createdAt string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &date, &e.Item, &e.Amount.Cents,
			&category, &e.Note, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		d, err := core.ParseDate(date, r.loc)
		if err != nil {
			return nil, fmt.Errorf("parse entry date %q: %w", date, err)
		}
		e.Date = d
		e.Category = core.Category(category)
		e.CreatedAt = parseTimestamp(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
