package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// defaultRequestsPerSecond guards against a zero limit from config, which
// would reject every request.
const defaultRequestsPerSecond = 100

// RateLimiter creates a per-IP rate limiting middleware
func RateLimiter(requestsPerSecond int) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}
	return httprate.LimitByIP(requestsPerSecond, time.Second)
}
