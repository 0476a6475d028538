package middlewares

import (
	"net/http"
	"sync"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
)

// RateLimitOptions caps both the per-client request rate and the number of
// requests served at the same time.
type RateLimitOptions struct {
	maxConcurrentRequest int
	inFlight             int
	limiter              *limiter.Limiter
	mut                  sync.Mutex
}

// NewRateLimiter allows requestsPerSecond per client and maxConcurrent in total.
// A maxConcurrent of zero disables the concurrency cap.
func NewRateLimiter(requestsPerSecond float64, maxConcurrent int) *RateLimitOptions {
	return &RateLimitOptions{
		maxConcurrentRequest: maxConcurrent,
		limiter:              tollbooth.NewLimiter(requestsPerSecond, nil),
	}
}

// Limit wraps handler with both limits.
func (rl *RateLimitOptions) Limit(handler http.Handler) http.Handler {
	middle := func(w http.ResponseWriter, r *http.Request) {
		if rl.maxConcurrentRequest > 0 {
			rl.mut.Lock()
			if rl.inFlight >= rl.maxConcurrentRequest {
				rl.mut.Unlock()
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			rl.inFlight++
			rl.mut.Unlock()

			defer func() {
				rl.mut.Lock()
				rl.inFlight--
				rl.mut.Unlock()
			}()
		}

		// There's no rate-limit error, serve the next handler.
		handler.ServeHTTP(w, r)
	}
	return tollbooth.LimitHandler(rl.limiter, http.HandlerFunc(middle))
}
