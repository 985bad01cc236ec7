package http

import "sync/atomic"

// apiMetrics tracks request outcomes with atomic counters. Exposed as a
// JSON snapshot on /metricsz.
type apiMetrics struct {
	requestsTotal int64
	rateLimitHits int64
	clientErrors  int64
	serverErrors  int64
}

func (m *apiMetrics) recordRequest() {
	atomic.AddInt64(&m.requestsTotal, 1)
}

func (m *apiMetrics) recordRateLimitHit() {
	atomic.AddInt64(&m.rateLimitHits, 1)
}

func (m *apiMetrics) recordStatus(code int) {
	switch {
	case code >= 500:
		atomic.AddInt64(&m.serverErrors, 1)
	case code >= 400:
		atomic.AddInt64(&m.clientErrors, 1)
	}
}

func (m *apiMetrics) snapshot() map[string]int64 {
	return map[string]int64{
		"requests_total":  atomic.LoadInt64(&m.requestsTotal),
		"rate_limit_hits": atomic.LoadInt64(&m.rateLimitHits),
		"client_errors":   atomic.LoadInt64(&m.clientErrors),
		"server_errors":   atomic.LoadInt64(&m.serverErrors),
	}
}
