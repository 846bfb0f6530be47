package middleware

import (
	"net/http"

	"github.com/upb/authcore/services"
	"github.com/upb/authcore/services/ratelimit"
	"github.com/upb/authcore/utils"
	"go.uber.org/zap"
)

// RateLimit throttles requests per client IP. It guards the credential
// endpoints against password guessing.
func RateLimit(limiter *ratelimit.RateLimitService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || !limiter.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip == "" {
				ip = "unknown"
			}

			result := limiter.CheckLimit(ip)
			if !result.Allowed {
				err := services.ErrRateLimitExceeded
				logger.Warn("rate limit exceeded",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.String("client_ip", ip),
					zap.String("path", r.URL.Path),
					zap.String("code", err.Code))
				_ = utils.WriteTooManyRequests(w, err.Message, result.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
