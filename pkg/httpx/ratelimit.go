package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/sessiond/pkg/slogx"
	"golang.org/x/time/rate"
)

// Limit is a token bucket refilled with Requests tokens per Window.
type Limit struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (l Limit) rate() rate.Limit {
	if l.Window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(l.Requests) / l.Window.Seconds())
}

// Limits groups the tiers the router assigns to its routes.
type Limits struct {
	Strict   Limit // credential checks: login, register, reauth
	Moderate Limit // refresh, logout, account changes
	Lenient  Limit // authenticated reads
	Public   Limit // JWKS and documents
}

// DefaultLimits are the production tiers.
func DefaultLimits() Limits {
	return Limits{
		Strict:   Limit{Requests: 5, Window: time.Minute, Burst: 5},
		Moderate: Limit{Requests: 20, Window: time.Minute, Burst: 20},
		Lenient:  Limit{Requests: 100, Window: time.Minute, Burst: 100},
		Public:   Limit{Requests: 1000, Window: time.Minute, Burst: 1000},
	}
}

// KeyFunc names the bucket a request is charged to. An empty key is not
// limited.
type KeyFunc func(*http.Request) string

// ClientIP is the first X-Forwarded-For hop, then X-Real-IP, then the peer
// address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuthenticatedUser is the user id stored by AuthnMiddleware.
func AuthenticatedUser(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}

// JSONField reads a top-level string field of a JSON body, trimmed and
// lower-cased. The body is put back for the handler.
func JSONField(name string) KeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxJSONBody))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return ""
		}
		var v string
		if err := json.Unmarshal(fields[name], &v); err != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// Keys joins the non-empty results of fns with ":".
func Keys(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, ":")
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// buckets holds one limiter per key. Keys idle for longer than idle are
// dropped on the next sweep.
type buckets struct {
	mu        sync.Mutex
	limit     Limit
	idle      time.Duration
	byKey     map[string]*bucket
	lastSweep time.Time
}

func newBuckets(l Limit) *buckets {
	idle := max(l.Window, time.Minute) * 2
	return &buckets{
		limit:     l,
		idle:      idle,
		byKey:     make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// take charges one request to key. On refusal it returns how long until the
// next token.
func (b *buckets) take(key string, now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) >= b.idle {
		for k, e := range b.byKey {
			if now.Sub(e.seen) >= b.idle {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	e, ok := b.byKey[key]
	if !ok {
		e = &bucket{lim: rate.NewLimiter(b.limit.rate(), b.limit.Burst)}
		b.byKey[key] = e
	}
	e.seen = now

	if e.lim.AllowN(now, 1) {
		return true, 0
	}

	r := e.lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay
}

type limitedBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// RateLimit refuses requests over l with 429 and a Retry-After header.
func RateLimit(l Limit, key KeyFunc) Middleware {
	b := newBuckets(l)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: no key for request")
				next.ServeHTTP(w, r)
				return
			}

			ok, delay := b.take(k, time.Now())
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(delay.Round(time.Second).Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Requests))
			w.Header().Set("X-RateLimit-Window", l.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteJSON(w, http.StatusTooManyRequests, limitedBody{
				Error:       "rate_limit_exceeded",
				Description: "Too many requests. Please try again later.",
			})
		})
	}
}

// RateLimitByIP limits per client address.
func RateLimitByIP(l Limit) Middleware {
	return RateLimit(l, ClientIP)
}

// RateLimitByUser limits per authenticated user and address. It must run
// after AuthnMiddleware.
func RateLimitByUser(l Limit) Middleware {
	return RateLimit(l, Keys(AuthenticatedUser, ClientIP))
}

// RateLimitByIPAndJSONField limits per address and body field, such as the
// email of a login attempt.
func RateLimitByIPAndJSONField(l Limit, field string) Middleware {
	return RateLimit(l, Keys(ClientIP, JSONField(field)))
}
