package core

import (
	"testing"
	"time"
)

func TestMonthsBetween(t *testing.T) {
	cases := []struct {
		from, to Period
		want     int
	}{
		{Period{2025, 1}, Period{2025, 1}, 0},
		{Period{2025, 1}, Period{2025, 3}, 2},
		{Period{2025, 11}, Period{2026, 2}, 3},
		{Period{2025, 3}, Period{2025, 1}, -2},
		{Period{2026, 1}, Period{2024, 12}, -13},
		{Period{2020, 6}, Period{2025, 6}, 60},
	}
	for i, tc := range cases {
		if got := MonthsBetween(tc.from, tc.to); got != tc.want {
			t.Errorf("case %d: MonthsBetween(%v, %v) = %d, want %d", i, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDateAddMonths(t *testing.T) {
	cases := []struct {
		name string
		d    Date
		n    int
		want Date
	}{
		{"same month", NewDate(2025, 3, 15), 0, NewDate(2025, 3, 15)},
		{"simple", NewDate(2025, 1, 10), 2, NewDate(2025, 3, 10)},
		{"year rollover", NewDate(2025, 11, 5), 3, NewDate(2026, 2, 5)},
		{"multi year", NewDate(2025, 1, 1), 25, NewDate(2027, 2, 1)},
		{"clamp jan 31 to feb 28", NewDate(2025, 1, 31), 1, NewDate(2025, 2, 28)},
		{"clamp jan 31 to feb 29 leap", NewDate(2024, 1, 31), 1, NewDate(2024, 2, 29)},
		{"clamp aug 31 to sep 30", NewDate(2025, 8, 31), 1, NewDate(2025, 9, 30)},
		{"backwards", NewDate(2025, 1, 15), -2, NewDate(2024, 11, 15)},
		{"backwards clamp", NewDate(2025, 3, 31), -1, NewDate(2025, 2, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.d.AddMonths(tc.n)
			if !got.Equal(tc.want.Time) {
				t.Errorf("AddMonths(%d) = %v, want %v", tc.n, got.Time, tc.want.Time)
			}
		})
	}
}

func TestPeriodAddMonths(t *testing.T) {
	cases := []struct {
		p    Period
		n    int
		want Period
	}{
		{Period{2025, 1}, 0, Period{2025, 1}},
		{Period{2025, 11}, 3, Period{2026, 2}},
		{Period{2025, 12}, 1, Period{2026, 1}},
		{Period{2025, 1}, -1, Period{2024, 12}},
		{Period{2025, 6}, 30, Period{2027, 12}},
	}
	for i, tc := range cases {
		if got := tc.p.AddMonths(tc.n); got != tc.want {
			t.Errorf("case %d: %v.AddMonths(%d) = %v, want %v", i, tc.p, tc.n, got, tc.want)
		}
	}
}

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
		// Out-of-range components normalize at construction rather than
		// producing an invalid date.
		{NewDate(2025, 13, 1), true},
		{NewDate(2025, 2, 30), true},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
	if d := NewDate(2025, 13, 1); d.Year() != 2026 || d.Month() != 1 {
		t.Fatalf("NewDate(2025, 13, 1) = %v, want 2026-01", d.Time)
	}
}

func TestDatePeriod(t *testing.T) {
	d := NewDate(2025, 11, 28)
	if got := d.Period(); got != (Period{2025, 11}) {
		t.Fatalf("Period() = %v, want {2025 11}", got)
	}
}
