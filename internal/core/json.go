package core

import (
	"encoding/json"
	"strconv"
	"time"
)

// MarshalJSON renders money as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// MarshalJSON renders the date as YYYY-MM-DD, or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts the string form written by MarshalJSON.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := MoneyFromDecimal(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalJSON parses YYYY-MM-DD as a UTC calendar day.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseDate(s, time.UTC)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
