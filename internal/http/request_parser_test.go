package http

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"carteira/internal/core"
)

func TestParsePeriodQuery(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		query   string
		want    core.Period
		wantErr error
	}{
		{"explicit", "year=2025&month=3", core.Period{Year: 2025, Month: 3}, nil},
		{"defaults", "", core.Period{Year: now.Year(), Month: int(now.Month())}, nil},
		{"month only", "month=12", core.Period{Year: now.Year(), Month: 12}, nil},
		{"month zero", "year=2025&month=0", core.Period{}, core.ErrInvalidMonth},
		{"month thirteen", "year=2025&month=13", core.Period{}, core.ErrInvalidMonth},
		{"non-numeric", "year=abc", core.Period{}, errBadPeriodParam},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tc.query)
			got, err := parsePeriodQuery(q)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("period = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParsePurchasePath(t *testing.T) {
	cases := []struct {
		path       string
		wantID     int64
		wantAction string
		wantErr    bool
	}{
		{"/api/purchases/7", 7, "", false},
		{"/api/purchases/7/", 7, "", false},
		{"/api/purchases/7/pay", 7, "pay", false},
		{"/api/purchases/7/schedule", 7, "schedule", false},
		{"/api/purchases/", 0, "", true},
		{"/api/purchases/abc", 0, "", true},
		{"/api/purchases/0", 0, "", true},
		{"/api/purchases/-3", 0, "", true},
		{"/api/purchases/7/pay/extra", 0, "", true},
	}

	for i, tc := range cases {
		id, action, err := parsePurchasePath(tc.path)
		if tc.wantErr {
			if err == nil {
				t.Errorf("case %d: %s expected error", i, tc.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("case %d: %s unexpected error %v", i, tc.path, err)
			continue
		}
		if id != tc.wantID || action != tc.wantAction {
			t.Errorf("case %d: %s = (%d, %q), want (%d, %q)", i, tc.path, id, action, tc.wantID, tc.wantAction)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Carlos Silva  ", "Carlos Silva"},
		{"nome\x00ruim", "nomeruim"},
		{"com\ttab", "com\ttab"},
		{"", ""},
	}
	for i, tc := range cases {
		if got := sanitizeInput(tc.in); got != tc.want {
			t.Errorf("case %d: sanitizeInput(%q) = %q, want %q", i, tc.in, got, tc.want)
		}
	}
}
