// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring rule cadences.
// Each frequency (weekly, monthly, yearly) has its own strategy that knows
// the cycle window, whether the trigger point has been reached, and the
// concrete due date of the cycle.

package services

import (
	"fmt"
	"time"

	"github.com/showbox88/GTPinput/internal/core"
)

// Cadence is the strategy interface for one recurring frequency. All methods
// are pure and evaluate now in its own location.
type Cadence interface {
	// Window returns the inclusive cycle containing now.
	Window(now time.Time) core.Window
	// Reached reports whether the cycle's trigger point has been reached.
	Reached(anchor int, now time.Time) bool
	// DueDate returns the day the obligation falls on within window. ok is
	// false when the cadence does not schedule entries.
	DueDate(anchor int, window core.Window) (due core.Date, ok bool)
}

// WeeklyCadence runs on ISO weeks, Monday through Sunday.
type WeeklyCadence struct{}

func (WeeklyCadence) Window(now time.Time) core.Window {
	start := core.DateOf(now).AddDays(-core.WeekdayIndex(now))
	return core.Window{Start: start, End: start.AddDays(6)}
}

// Reached returns true once today's weekday index is at or past the anchor.
func (WeeklyCadence) Reached(anchor int, now time.Time) bool {
	return core.WeekdayIndex(now) >= anchor
}

func (WeeklyCadence) DueDate(anchor int, window core.Window) (core.Date, bool) {
	return window.Start.AddDays(anchor), true
}

// MonthlyCadence runs on calendar months. Anchors past the end of a short
// month compress to its last day.
type MonthlyCadence struct{}

func (MonthlyCadence) Window(now time.Time) core.Window {
	y, m, _ := now.Date()
	return core.Window{
		Start: core.NewDate(y, m, 1, now.Location()),
		End:   core.NewDate(y, m, core.DaysIn(y, m), now.Location()),
	}
}

// Reached returns true if we're on or past the anchor day, or on the last
// day of a month that has no anchor day.
func (MonthlyCadence) Reached(anchor int, now time.Time) bool {
	if now.Day() >= anchor {
		return true
	}
	return core.IsLastDayOfMonth(now) && anchor > core.DaysIn(now.Year(), now.Month())
}

func (MonthlyCadence) DueDate(anchor int, window core.Window) (core.Date, bool) {
	y, m, _ := window.Start.Date()
	return core.NewDate(y, m, core.ClampedMonthDay(y, m, anchor), window.Start.Location()), true
}

// YearlyCadence computes calendar-year windows but never fires: there is no
// agreed yearly trigger semantics yet.
type YearlyCadence struct{}

func (YearlyCadence) Window(now time.Time) core.Window {
	y := now.Year()
	return core.Window{
		Start: core.NewDate(y, time.January, 1, now.Location()),
		End:   core.NewDate(y, time.December, 31, now.Location()),
	}
}

func (YearlyCadence) Reached(int, time.Time) bool { return false }

func (YearlyCadence) DueDate(int, core.Window) (core.Date, bool) { return core.Date{}, false }

// cadenceStrategies maps frequencies to their corresponding cadence.
var cadenceStrategies = map[core.Frequency]Cadence{
	core.Weekly:  WeeklyCadence{},
	core.Monthly: MonthlyCadence{},
	core.Yearly:  YearlyCadence{},
}

// GetCadence returns the cadence strategy for a frequency.
// Returns an error if the frequency is not supported.
func GetCadence(frequency core.Frequency) (Cadence, error) {
	cadence, ok := cadenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return cadence, nil
}

// DueWindow computes the current cycle window for a frequency.
func DueWindow(frequency core.Frequency, now time.Time) (core.Window, error) {
	cadence, err := GetCadence(frequency)
	if err != nil {
		return core.Window{}, err
	}
	return cadence.Window(now), nil
}

// TriggerReached evaluates whether a schedule's trigger point has been
// reached at now.
func TriggerReached(s core.Schedule, now time.Time) (bool, error) {
	cadence, err := GetCadence(s.Frequency)
	if err != nil {
		return false, err
	}
	return cadence.Reached(s.Anchor, now), nil
}
