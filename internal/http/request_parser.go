package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/showbox88/GTPinput/internal/core"
)

const (
	maxBodyBytes   = 1 << 16
	maxOwnerLength = 100
)

var (
	errMissingOwner = errors.New("owner is required")
	errOwnerTooLong = fmt.Errorf("owner too long (max %d characters)", maxOwnerLength)
)

// parseOwner reads the owner query parameter.
func parseOwner(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		return "", errMissingOwner
	}
	if len(owner) > maxOwnerLength {
		return "", errOwnerTooLong
	}
	return owner, nil
}

// parseRunTime returns now, or noon of the date query parameter in loc.
func parseRunTime(r *http.Request, now time.Time, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return now, nil
	}
	d, err := core.ParseDate(v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc), nil
}

// createRuleRequest is the JSON body of POST and PUT /api/rules. Either
// Anchor or StartDate must be set.
type createRuleRequest struct {
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	Category  string `json:"category"`
	Frequency string `json:"frequency"`
	Anchor    *int   `json:"anchor"`
	StartDate string `json:"start_date"`
	Active    *bool  `json:"active"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// toRule converts the request into a validated rule.
func (req createRuleRequest) toRule(loc *time.Location) (core.RecurringRule, error) {
	amount, err := core.MoneyFromDecimal(req.Amount)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, req.Amount)
	}
	freq, err := core.ParseFrequency(req.Frequency)
	if err != nil {
		return core.RecurringRule{}, err
	}

	var schedule core.Schedule
	switch {
	case req.Anchor != nil:
		schedule = core.Schedule{Frequency: freq, Anchor: *req.Anchor}
	case req.StartDate != "":
		start, err := core.ParseDate(req.StartDate, loc)
		if err != nil {
			return core.RecurringRule{}, fmt.Errorf("invalid start_date %q: %w", req.StartDate, err)
		}
		schedule = core.ScheduleFromStartDate(freq, start)
	default:
		return core.RecurringRule{}, errors.New("anchor or start_date is required")
	}

	rule := core.RecurringRule{
		OwnerID:  strings.TrimSpace(req.Owner),
		Name:     strings.TrimSpace(req.Name),
		Amount:   amount,
		Category: core.Category(req.Category),
		Schedule: schedule,
		Active:   req.Active == nil || *req.Active,
	}
	if len(rule.OwnerID) > maxOwnerLength {
		return core.RecurringRule{}, errOwnerTooLong
	}
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	return rule, nil
}

// parseRuleID reads the positive rule id query parameter.
func parseRuleID(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("id")
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", v)
	}
	return id, nil
}

// parseRuleActive reads id and active from the query string.
func parseRuleActive(r *http.Request) (int64, bool, error) {
	id, err := parseRuleID(r)
	if err != nil {
		return 0, false, err
	}
	q := r.URL.Query()
	active, err := strconv.ParseBool(q.Get("active"))
	if err != nil {
		return 0, false, fmt.Errorf("invalid active flag %q", q.Get("active"))
	}
	return id, active, nil
}
