package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultRequestBodyLimitBytes caps request payload size. A submission carries
	// the whole codebase, so the cap sits above the codebase total plus JSON overhead.
	DefaultRequestBodyLimitBytes int64 = 64 << 20 // 64 MiB

	// DefaultRateLimitRequests is the default submission budget per client IP and window.
	DefaultRateLimitRequests = 60

	// DefaultRateLimitWindow is the default throttle window.
	DefaultRateLimitWindow = time.Minute
)

const (
	securityHeaderNoSniff = "nosniff"
	securityHeaderNoFrame = "DENY"
	securityHeaderHSTS    = "max-age=63072000; includeSubDomains"
	securityHeaderCSP     = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
)

// clientBudget is one client's submission count within the current window.
type clientBudget struct {
	opened time.Time
	used   int
}

// submissionLimiter bounds how many jobs a single client can submit or
// mutate per window. Reads are never counted.
type submissionLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	clients map[string]clientBudget
}

func newSubmissionLimiter(limit int, window time.Duration, now func() time.Time) *submissionLimiter {
	if limit <= 0 {
		limit = DefaultRateLimitRequests
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if now == nil {
		now = time.Now
	}
	return &submissionLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		clients: make(map[string]clientBudget),
	}
}

// take consumes one unit of the client's budget. When the budget is spent it
// returns false and how long until the window reopens.
func (l *submissionLimiter) take(client string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for c, b := range l.clients {
		if now.Sub(b.opened) >= 2*l.window {
			delete(l.clients, c)
		}
	}

	b := l.clients[client]
	if b.opened.IsZero() || now.Sub(b.opened) >= l.window {
		l.clients[client] = clientBudget{opened: now, used: 1}
		return true, 0
	}
	if b.used >= l.limit {
		return false, l.window - now.Sub(b.opened)
	}
	b.used++
	l.clients[client] = b
	return true, 0
}

// SecurityHeaders ensures API responses include baseline browser hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", securityHeaderNoSniff)
		w.Header().Set("X-Frame-Options", securityHeaderNoFrame)
		w.Header().Set("Strict-Transport-Security", securityHeaderHSTS)
		w.Header().Set("Content-Security-Policy", securityHeaderCSP)
		next.ServeHTTP(w, r)
	})
}

// BodySizeLimit caps request body size before handler processing.
func BodySizeLimit(limitBytes int64) func(http.Handler) http.Handler {
	if limitBytes <= 0 {
		limitBytes = DefaultRequestBodyLimitBytes
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LimitSubmissions throttles state-changing requests (job creation, cancel,
// delete) per client IP. Health checks, polling and event streams pass through.
func LimitSubmissions(limit int, window time.Duration) func(http.Handler) http.Handler {
	return limitSubmissionsWithClock(limit, window, time.Now)
}

func limitSubmissionsWithClock(limit int, window time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	limiter := newSubmissionLimiter(limit, window, now)

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutates(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := limiter.take(clientIPFromRequest(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		})
	}
}

func mutates(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// retryAfterSeconds rounds wait up to whole seconds, never below one.
func retryAfterSeconds(wait time.Duration) int {
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func clientIPFromRequest(r *http.Request) string {
	forwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwardedFor != "" {
		parts := strings.Split(forwardedFor, ",")
		if len(parts) > 0 {
			clientIP := strings.TrimSpace(parts[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	remoteAddr := strings.TrimSpace(r.RemoteAddr)
	if remoteAddr == "" {
		return "unknown"
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err == nil && host != "" {
		return host
	}

	return remoteAddr
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps event streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestLogger logs one line per request at debug level, and at warn level for 5xx.
func RequestLogger(logger hclog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			args := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"client", clientIPFromRequest(r),
				"duration", time.Since(start),
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Warn("request failed", args...)
				return
			}
			logger.Debug("request", args...)
		})
	}
}
