// Package pricing contains the price source adapters. Each adapter is one
// tier of the fallback chain and is the only place its upstream's response
// shape is known.
package pricing

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainfolio/valuator/internal/domain/entities"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// httpClient wraps fasthttp with per-source rate limiting and error
// classification shared by all price source adapters.
type httpClient struct {
	client  *fasthttp.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

func newHTTPClient(rps float64, timeout time.Duration, logger *zap.Logger) *httpClient {
	if rps <= 0 {
		rps = 1
	}
	return &httpClient{
		client:  &fasthttp.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
		logger:  logger,
	}
}

// getJSON performs a rate-limited GET and returns the response body.
// Non-2xx statuses are classified: 4xx wraps ErrProviderRejected, anything
// else wraps ErrProviderUnavailable, as do transport failures.
func (c *httpClient) getJSON(ctx context.Context, requestURL string, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", entities.ErrProviderUnavailable, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("%w: request to %s: %v", entities.ErrProviderUnavailable, requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			return nil, fmt.Errorf("%w: request to %s: %v", entities.ErrProviderUnavailable, requestURL, err)
		}
	}

	status := resp.StatusCode()
	if status >= 400 && status < 500 {
		c.logger.Warn("Price source rejected request",
			zap.String("url", requestURL),
			zap.Int("status", status),
		)
		return nil, fmt.Errorf("%w: %s returned status %d", entities.ErrProviderRejected, requestURL, status)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d", entities.ErrProviderUnavailable, requestURL, status)
	}

	// The body is reused once the response is released
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}
