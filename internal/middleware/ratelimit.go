package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"webforge/internal/httputil"
)

// idleLimiterTTL is how long an unused per-user limiter is kept
const idleLimiterTTL = 10 * time.Minute

// UserRateLimiter throttles expensive endpoints per authenticated user.
type UserRateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*userLimiter
	lastSweep time.Time
	now       func() time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows perMinute requests per user with a burst of the
// same size. perMinute <= 0 disables limiting.
func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	l := &UserRateLimiter{
		limit:    rate.Inf,
		limiters: map[string]*userLimiter{},
		now:      time.Now,
	}
	if perMinute > 0 {
		l.limit = rate.Limit(float64(perMinute) / 60)
		l.burst = perMinute
	}
	return l
}

// Wrap rejects requests over the caller's budget with 429
func (l *UserRateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if l.limit == rate.Inf {
			next(w, r)
			return
		}

		limiter := l.get(httputil.GetUserID(r))
		if !limiter.Allow() {
			retry := time.Duration(float64(time.Second) / float64(l.limit))
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			httputil.RespondErrorWithExtras(w, http.StatusTooManyRequests, "too many generation requests",
				map[string]interface{}{"code": "rate_limited"})
			return
		}
		next(w, r)
	}
}

func (l *UserRateLimiter) get(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > idleLimiterTTL {
		for id, entry := range l.limiters {
			if now.Sub(entry.lastSeen) > idleLimiterTTL {
				delete(l.limiters, id)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.limiters[userID]
	if !ok {
		entry = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}
