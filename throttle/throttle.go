// Package throttle limits how often an authenticated user may hit a route
package throttle

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zllovesuki/plzdm/auth"
	"github.com/zllovesuki/plzdm/metrics"
	resp "github.com/zllovesuki/plzdm/response"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Options contains the configuration of Limiter
type Options struct {
	// Rate is the sustained number of requests per second
	Rate float64
	// Burst is the number of requests allowed at once
	Burst  int
	Logger *zap.Logger
}

// Limiter keeps one token bucket per user
type Limiter struct {
	Options

	mu       sync.Mutex
	visitors map[string]*visitor
}

// New returns a Limiter
func New(option Options) (*Limiter, error) {
	if option.Rate <= 0 {
		return nil, fmt.Errorf("non-positive Rate is invalid")
	}
	if option.Burst <= 0 {
		return nil, fmt.Errorf("non-positive Burst is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Limiter{
		Options:  option,
		visitors: make(map[string]*visitor),
	}, nil
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		v = &visitor{
			limiter: rate.NewLimiter(rate.Limit(l.Rate), l.Burst),
		}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup forgets users idle for longer than idle
func (l *Limiter) Cleanup(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.visitors {
		if time.Since(v.lastSeen) > idle {
			delete(l.visitors, key)
		}
	}
}

// Middleware rejects requests over the user's budget with 429. It must run after auth.Middleware
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			l.Logger.Error("Context has no Claims")
			resp.WriteError(w, r, resp.ErrUnexpected())
			return
		}

		res := l.get(claims.UserID()).Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			metrics.ThrottledTotal.Inc()
			retry := strconv.Itoa(int(math.Ceil(delay.Seconds())))
			resp.WriteError(w, r, resp.ErrTooManyRequests().
				AddMessages("Slow down, try again in "+retry+" seconds").
				WithHeader("Retry-After", retry))
			return
		}

		next.ServeHTTP(w, r)
	})
}
