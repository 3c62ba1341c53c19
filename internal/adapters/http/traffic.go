package httpadapter

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/kirillkom/document-validator/internal/adapters/presenter"
)

const (
	msgRateLimited = "Muitas requisições. Aguarde e tente novamente."
	msgOverloaded  = "Servidor ocupado no momento. Tente novamente em instantes."
)

// rateLimitMiddleware sheds load above rps with a single token bucket shared
// by all clients. Non-positive rps disables it.
func rateLimitMiddleware(next http.Handler, rps float64, burst int, onReject func()) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(1/rps))))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromTrafficControl(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !limiter.Allow() {
			if onReject != nil {
				onReject()
			}
			w.Header().Set("Retry-After", retryAfter)
			writeJSON(w, http.StatusTooManyRequests, presenter.NewError(msgRateLimited, nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware admits at most limit concurrent requests. A request
// that cannot get a slot within wait is answered with 503.
func backpressureMiddleware(next http.Handler, limit int, wait time.Duration) http.Handler {
	return backpressureWithHook(next, limit, wait, nil)
}

func backpressureWithHook(next http.Handler, limit int, wait time.Duration, onReject func()) http.Handler {
	if limit <= 0 {
		return next
	}
	sem := semaphore.NewWeighted(int64(limit))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !acquire(r.Context(), sem, wait) {
			if onReject != nil {
				onReject()
			}
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusServiceUnavailable, presenter.NewError(msgOverloaded, nil))
			return
		}
		defer sem.Release(1)
		next.ServeHTTP(w, r)
	})
}

func acquire(ctx context.Context, sem *semaphore.Weighted, wait time.Duration) bool {
	if wait <= 0 {
		return sem.TryAcquire(1)
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return sem.Acquire(waitCtx, 1) == nil
}

func exemptFromTrafficControl(path string) bool {
	return path == "/healthz" || path == "/metrics"
}
