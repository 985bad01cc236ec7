package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"carteira/internal/cache"
	"carteira/internal/core"
	applog "carteira/internal/log"
)

// PurchaseAPI is the service surface the handlers call into.
type PurchaseAPI interface {
	Register(ctx context.Context, p core.Purchase) (core.Purchase, error)
	Get(ctx context.Context, id int64) (core.Purchase, error)
	ListAll(ctx context.Context) ([]core.Purchase, error)
	MarkInstallmentPaid(ctx context.Context, id int64) (core.Purchase, error)
	Delete(ctx context.Context, id int64) error
	SummaryForPeriod(ctx context.Context, period core.Period) (core.PeriodSummary, error)
	Schedule(ctx context.Context, id int64) (core.Purchase, []core.InstallmentDescriptor, error)
}

type Server struct {
	http.Server
	api         PurchaseAPI
	logger      *applog.Logger
	rateLimiter *rateLimiter
	metrics     *apiMetrics

	// Period summaries are cached per month and purged on any mutation: a
	// single purchase touches every period its schedule spans, so targeted
	// invalidation buys nothing.
	summaryCache *cache.LRUCache[core.PeriodSummary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, api PurchaseAPI, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		api:          api,
		logger:       logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:  newRateLimiter(60, time.Minute),
		metrics:      &apiMetrics{},
		summaryCache: cache.NewLRUCache[core.PeriodSummary](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/metricsz", s.handleMetrics)
	mux.HandleFunc("/api/purchases", s.withMiddleware(s.handlePurchases))
	mux.HandleFunc("/api/purchases/", s.withMiddleware(s.handlePurchaseSubtree))
	mux.HandleFunc("/api/summary", s.withMiddleware(s.handleSummary))

	return s
}

// withMiddleware adds request logging, rate limiting on mutations, security
// headers and status metrics around a handler.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.recordRequest()

		clientIP := extractClientIP(r)
		ctx := applog.IntoContext(r.Context(), s.logger)
		ctx = applog.WithRequestID(ctx, generateRequestID())
		r = r.WithContext(ctx)

		logger := applog.FromContext(ctx)
		logger.InfoContext(ctx, "Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		if isMutation(r.Method) && !s.rateLimiter.allow(clientIP) {
			s.metrics.recordRateLimitHit()
			s.metrics.recordStatus(http.StatusTooManyRequests)
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.metrics.recordStatus(rw.statusCode)
		logger.InfoContext(ctx, "Request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

func isMutation(method string) bool {
	return method == http.MethodPost || method == http.MethodDelete || method == http.MethodPut
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// cachedSummary returns the period summary, computing and caching it on a
// miss.
func (s *Server) cachedSummary(ctx context.Context, period core.Period) (core.PeriodSummary, error) {
	key := fmt.Sprintf("%04d-%02d", period.Year, period.Month)
	if summary, ok := s.summaryCache.Get(key); ok {
		applog.FromContext(ctx).DebugContext(ctx, "Summary cache hit",
			applog.FieldYear, period.Year, applog.FieldMonth, period.Month)
		return summary, nil
	}

	summary, err := s.api.SummaryForPeriod(ctx, period)
	if err != nil {
		return core.PeriodSummary{}, err
	}
	s.summaryCache.Set(key, summary)
	return summary, nil
}

// invalidateSummaries is called after every purchase mutation.
func (s *Server) invalidateSummaries() {
	s.summaryCache.Purge()
}

// Shutdown stops the background goroutines, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
