/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{name: "hours and minutes", input: "08:30", want: New(8, 30, 0)},
		{name: "single digit hour", input: "7:05", want: New(7, 5, 0)},
		{name: "with seconds", input: "13:45:10", want: New(13, 45, 10)},
		{name: "surrounding spaces", input: "  06:00 ", want: New(6, 0, 0)},
		{name: "fractional seconds", input: "08:07:30.5", want: New(8, 7, 30) + TimeOfDay(500*time.Millisecond)},
		{name: "serial fraction", input: "0.5", want: New(12, 0, 0)},
		{name: "serial with date part", input: "45123.25", want: New(6, 0, 0)},
		{name: "serial eight hours rounds", input: "0.333333333", want: New(8, 0, 0)},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "noon", wantErr: true},
		{name: "hour out of range", input: "24:00", wantErr: true},
		{name: "minute out of range", input: "10:60", wantErr: true},
		{name: "too many parts", input: "10:00:00:00", wantErr: true},
		{name: "not a number", input: "NaN", wantErr: true},
		{name: "infinity", input: "Inf", wantErr: true},
		{name: "signed infinity", input: "+Inf", wantErr: true},
		{name: "negative infinity", input: "-Inf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAddMinutesFractional(t *testing.T) {
	start := New(8, 0, 0)
	got := start.AddMinutes(7.5)
	if got != New(8, 7, 30) {
		t.Fatalf("AddMinutes(7.5) = %v, want 08:07:30", got)
	}
	if got.String() != "08:07:30" {
		t.Errorf("String() = %q, want 08:07:30", got.String())
	}
}

func TestStringOmitsZeroSeconds(t *testing.T) {
	if s := New(8, 10, 0).String(); s != "08:10" {
		t.Errorf("String() = %q, want 08:10", s)
	}
}

func TestTextRoundTripKeepsFraction(t *testing.T) {
	original := New(8, 0, 0).AddMinutes(30.0 / 7.0)

	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded TimeOfDay
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText(%q): %v", text, err)
	}
	if decoded != original {
		t.Errorf("round trip through %q = %v (%d), want %d", text, decoded, int64(decoded), int64(original))
	}
}

func TestOverlapsIsStrict(t *testing.T) {
	a, b, c := New(8, 0, 0), New(8, 10, 0), New(8, 20, 0)

	if Overlaps(a, b, b, c) {
		t.Error("adjacent windows must not overlap")
	}
	if !Overlaps(a, c, b, c) {
		t.Error("nested windows must overlap")
	}
	if !Overlaps(a, b.AddMinutes(1), b, c) {
		t.Error("windows sharing a minute must overlap")
	}
}

func TestScan(t *testing.T) {
	var got TimeOfDay
	if err := got.Scan(int64(New(9, 15, 0))); err != nil {
		t.Fatalf("Scan int64: %v", err)
	}
	if got != New(9, 15, 0) {
		t.Errorf("Scan int64 = %v, want 09:15", got)
	}

	if err := got.Scan("10:45"); err != nil {
		t.Fatalf("Scan string: %v", err)
	}
	if got != New(10, 45, 0) {
		t.Errorf("Scan string = %v, want 10:45", got)
	}

	if err := got.Scan(true); err == nil {
		t.Error("Scan bool should fail")
	}
}
