package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Weekly  Frequency = "Weekly"
	Monthly Frequency = "Monthly"
	Yearly  Frequency = "Yearly"
)

const (
	SourceRecurringRule = "recurring_rule"
	SourceManual        = "manual"
	SourceChat          = "chat"
)

const (
	CategoryFood          Category = "Food"
	CategoryGroceries     Category = "Groceries"
	CategoryTransport     Category = "Transport"
	CategoryClothing      Category = "Clothing"
	CategoryMedical       Category = "Medical"
	CategoryEntertainment Category = "Entertainment"
	CategoryHousing       Category = "Housing"
	CategoryOther         Category = "Other"
)

type (
	Frequency string

	Category string

	// Schedule is the cadence of a rule. Anchor is interpreted by Frequency:
	// weekday index 0-6 (Monday = 0) for Weekly, day of month 1-31 for
	// Monthly, day of year 1-366 for Yearly.
	Schedule struct {
		Frequency Frequency
		Anchor    int
	}

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	RecurringRule struct {
		ID        int64
		OwnerID   string
		Name      string
		Amount    Money
		Category  Category
		Schedule  Schedule
		Active    bool
		CreatedAt time.Time
	}

	LedgerEntry struct {
		ID        int64
		OwnerID   string
		Date      Date
		Item      string
		Amount    Money
		Category  Category
		Note      string
		Source    string
		CreatedAt time.Time
	}

	// EntryQuery selects ledger entries by signature and inclusive date range.
	EntryQuery struct {
		OwnerID  string
		Item     string
		Category Category
		Window   Window
	}
)

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidAnchor    = errors.New("anchor out of range for frequency")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyOwner       = errors.New("empty owner")
)

var categories = []Category{
	CategoryFood,
	CategoryGroceries,
	CategoryTransport,
	CategoryClothing,
	CategoryMedical,
	CategoryEntertainment,
	CategoryHousing,
	CategoryOther,
}

// Categories returns the closed set of ledger categories.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseFrequency accepts the canonical names case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	case "yearly":
		return Yearly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

// AnchorRange returns the inclusive anchor bounds for a frequency.
func (f Frequency) AnchorRange() (lo, hi int, ok bool) {
	switch f {
	case Weekly:
		return 0, 6, true
	case Monthly:
		return 1, 31, true
	case Yearly:
		return 1, 366, true
	}
	return 0, 0, false
}

func (s Schedule) Validate() error {
	lo, hi, ok := s.Frequency.AnchorRange()
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, s.Frequency)
	}
	if s.Anchor < lo || s.Anchor > hi {
		return fmt.Errorf("%w: %s anchor %d not in [%d,%d]", ErrInvalidAnchor, s.Frequency, s.Anchor, lo, hi)
	}
	return nil
}

func (s Schedule) String() string {
	return fmt.Sprintf("%s(%d)", s.Frequency, s.Anchor)
}

// ScheduleFromStartDate derives the anchor from a first due date: the ISO
// weekday index for Weekly, the day of year for Yearly and the day of month
// otherwise.
func ScheduleFromStartDate(f Frequency, start Date) Schedule {
	switch f {
	case Weekly:
		return Schedule{Frequency: f, Anchor: WeekdayIndex(start.Time)}
	case Yearly:
		return Schedule{Frequency: f, Anchor: start.YearDay()}
	default:
		return Schedule{Frequency: f, Anchor: start.Day()}
	}
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, r.Category)
	}
	return r.Schedule.Validate()
}

func (e LedgerEntry) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if e.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if strings.TrimSpace(e.Item) == "" {
		return ErrEmptyName
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	return nil
}

// ErrDuplicateEntry is returned by a LedgerStore that rejects a second
// recurring_rule entry with the same owner, item, category and date.
var ErrDuplicateEntry = errors.New("duplicate recurring entry")

// ErrRuleNotFound is returned when a rule id does not exist.
var ErrRuleNotFound = errors.New("rule not found")
