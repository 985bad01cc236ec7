package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.7:4411", "", "", "203.0.113.7"},
		{"untrusted peer ignores xff", "203.0.113.7:4411", "198.51.100.9", "", "203.0.113.7"},
		{"trusted proxy honors xff", "127.0.0.1:8080", "198.51.100.9", "", "198.51.100.9"},
		{"xff first hop wins", "10.1.2.3:1000", "198.51.100.9, 10.0.0.1", "", "198.51.100.9"},
		{"garbage xff falls through", "127.0.0.1:8080", "not-an-ip", "198.51.100.9", "198.51.100.9"},
		{"real-ip fallback", "192.168.1.1:9", "", "198.51.100.9", "198.51.100.9"},
		{"no headers from proxy", "127.0.0.1:8080", "", "", "127.0.0.1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				r.Header.Set("X-Real-IP", tc.xri)
			}
			if got := extractClientIP(r); got != tc.want {
				t.Fatalf("extractClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first requests within limit rejected")
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("request over limit allowed")
	}

	// Buckets are per client.
	if !rl.allow("5.6.7.8") {
		t.Fatal("other client rejected")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := newRateLimiter(1, 10*time.Millisecond)
	defer rl.stop()

	if !rl.allow("1.2.3.4") {
		t.Fatal("first request rejected")
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("second request within window allowed")
	}

	time.Sleep(20 * time.Millisecond)
	if !rl.allow("1.2.3.4") {
		t.Fatal("request after window reset rejected")
	}
}
