package core

import (
	"errors"
	"testing"
	"time"
)

func TestScheduleValidate(t *testing.T) {
	cases := []struct {
		s  Schedule
		ok bool
	}{
		{Schedule{Weekly, 0}, true},
		{Schedule{Weekly, 6}, true},
		{Schedule{Weekly, 7}, false},
		{Schedule{Weekly, -1}, false},
		{Schedule{Monthly, 1}, true},
		{Schedule{Monthly, 31}, true},
		{Schedule{Monthly, 0}, false},
		{Schedule{Monthly, 32}, false},
		{Schedule{Yearly, 366}, true},
		{Schedule{Yearly, 367}, false},
		{Schedule{"Daily", 1}, false},
	}
	for i, tc := range cases {
		err := tc.s.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d (%s) expected ok, got %v", i, tc.s, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d (%s) expected error", i, tc.s)
		}
	}
}

func TestRecurringRuleValidate(t *testing.T) {
	good := RecurringRule{
		OwnerID:  "u1",
		Name:     "Netflix",
		Amount:   Money{Cents: 1500},
		Category: CategoryEntertainment,
		Schedule: Schedule{Monthly, 1},
		Active:   true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	free := good
	free.Amount = Money{}
	if err := free.Validate(); err != nil {
		t.Fatalf("zero amount should be allowed, got %v", err)
	}

	bad := good
	bad.Category = "Crypto"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	bad = good
	bad.Schedule = Schedule{Weekly, 9}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAnchor) {
		t.Fatalf("expected ErrInvalidAnchor, got %v", err)
	}

	bad = good
	bad.Amount = Money{Cents: -1}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	bad = good
	bad.OwnerID = " "
	if err := bad.Validate(); !errors.Is(err, ErrEmptyOwner) {
		t.Fatalf("expected ErrEmptyOwner, got %v", err)
	}
}

func TestParseFrequency(t *testing.T) {
	for in, want := range map[string]Frequency{"weekly": Weekly, "Monthly": Monthly, " YEARLY ": Yearly} {
		got, err := ParseFrequency(in)
		if err != nil || got != want {
			t.Fatalf("ParseFrequency(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFrequency("daily"); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}

func TestScheduleFromStartDate(t *testing.T) {
	friday := NewDate(2024, time.March, 8, time.UTC)
	if got := ScheduleFromStartDate(Weekly, friday); got.Anchor != 4 {
		t.Fatalf("weekly anchor = %d, want 4", got.Anchor)
	}
	if got := ScheduleFromStartDate(Monthly, friday); got.Anchor != 8 {
		t.Fatalf("monthly anchor = %d, want 8", got.Anchor)
	}
	if got := ScheduleFromStartDate(Yearly, friday); got.Anchor != 68 {
		t.Fatalf("yearly anchor = %d, want 68", got.Anchor)
	}
}

func TestCalendarHelpers(t *testing.T) {
	if got := DaysIn(2023, time.February); got != 28 {
		t.Fatalf("DaysIn(2023-02) = %d", got)
	}
	if got := DaysIn(2024, time.February); got != 29 {
		t.Fatalf("DaysIn(2024-02) = %d", got)
	}
	if got := ClampedMonthDay(2024, time.April, 31); got != 30 {
		t.Fatalf("ClampedMonthDay(2024-04, 31) = %d", got)
	}
	if got := WeekdayIndex(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)); got != 0 {
		t.Fatalf("Monday index = %d", got)
	}
	if got := WeekdayIndex(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)); got != 6 {
		t.Fatalf("Sunday index = %d", got)
	}

	w := Window{Start: NewDate(2024, 3, 1, time.UTC), End: NewDate(2024, 3, 31, time.UTC)}
	if !w.Contains(NewDate(2024, 3, 31, time.UTC)) || w.Contains(NewDate(2024, 4, 1, time.UTC)) {
		t.Fatalf("window bounds must be inclusive")
	}
	if got := NewDate(2024, 2, 28, time.UTC).AddDays(1).String(); got != "2024-02-29" {
		t.Fatalf("AddDays = %s", got)
	}
}
