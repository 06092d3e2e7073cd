/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock models wall-clock times of day used by shift and break windows.
package clock

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Day is the length of one calendar day.
const Day = 24 * time.Hour

// TimeOfDay is an offset from midnight. Break slices may fall on fractional
// minutes, so the full nanosecond resolution of time.Duration is kept.
type TimeOfDay time.Duration

// New builds a time of day from hour, minute and second components.
func New(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

// Ptr returns a pointer to t, handy for optional fields.
func Ptr(t TimeOfDay) *TimeOfDay {
	return &t
}

// MustParse is Parse for tests and static tables.
func MustParse(value string) TimeOfDay {
	t, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return t
}

// Parse reads "HH:MM", "HH:MM:SS" (seconds may carry a fraction) or a
// spreadsheet serial number, of which only the day fraction is used.
func Parse(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty time value")
	}

	if !strings.Contains(value, ":") {
		serial, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(serial) || math.IsInf(serial, 0) {
			return 0, fmt.Errorf("unparseable time value %q", value)
		}
		return FromSerial(serial), nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("unparseable time value %q", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}

	t := New(hour, minute, 0)
	if len(parts) == 3 {
		seconds, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || seconds < 0 || seconds >= 60 {
			return 0, fmt.Errorf("invalid second in %q", value)
		}
		t += TimeOfDay(math.Round(seconds * float64(time.Second)))
	}
	return t, nil
}

// FromSerial converts a spreadsheet serial date-time to its time of day,
// rounded to the nearest second.
func FromSerial(serial float64) TimeOfDay {
	_, frac := math.Modf(serial)
	if frac < 0 {
		frac++
	}
	seconds := math.Round(frac * Day.Seconds())
	return TimeOfDay(time.Duration(seconds) * time.Second).wrap()
}

func (t TimeOfDay) wrap() TimeOfDay {
	d := time.Duration(t) % Day
	if d < 0 {
		d += Day
	}
	return TimeOfDay(d)
}

// AddMinutes shifts t by a possibly fractional number of minutes.
func (t TimeOfDay) AddMinutes(minutes float64) TimeOfDay {
	return t + TimeOfDay(math.Round(minutes*float64(time.Minute)))
}

// Sub returns the duration t-u.
func (t TimeOfDay) Sub(u TimeOfDay) time.Duration {
	return time.Duration(t - u)
}

// Minutes returns the offset from midnight in minutes.
func (t TimeOfDay) Minutes() float64 {
	return time.Duration(t).Minutes()
}

// Before reports whether t is earlier than u.
func (t TimeOfDay) Before(u TimeOfDay) bool {
	return t < u
}

// String renders HH:MM, or HH:MM:SS when seconds are present.
func (t TimeOfDay) String() string {
	d := time.Duration(t.wrap())
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if s == 0 && d%time.Second == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// MarshalText renders a lossless form accepted by Parse.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	d := time.Duration(t.wrap())
	if d%time.Second == 0 {
		return []byte(t.String()), nil
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	sec := float64(d%time.Minute) / float64(time.Second)
	return []byte(fmt.Sprintf("%02d:%02d:%s", h, m, formatSeconds(sec))), nil
}

func formatSeconds(sec float64) string {
	s := strconv.FormatFloat(sec, 'f', 9, 64)
	s = strings.TrimRight(s, "0")
	if sec < 10 {
		s = "0" + s
	}
	return s
}

// UnmarshalText parses any form accepted by Parse.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the offset as integer nanoseconds.
func (t TimeOfDay) Value() (driver.Value, error) {
	return int64(t), nil
}

// Scan accepts integer nanoseconds or any textual form accepted by Parse.
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case int64:
		*t = TimeOfDay(v)
		return nil
	case float64:
		*t = TimeOfDay(int64(v))
		return nil
	case []byte:
		return t.UnmarshalText(v)
	case string:
		return t.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share any instant.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// Format renders an optional time, empty when unset.
func Format(t *TimeOfDay) string {
	if t == nil {
		return ""
	}
	return t.String()
}
