package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
	"github.com/yungbote/novelvideo/internal/pipeline/retry"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// httpHTTPError carries a non-2xx response so callers can inspect the
// status code and body without string-parsing an error message.
type httpHTTPError struct {
	StatusCode int
	Body       string
}

func (e *httpHTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTPStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500
}

// httpRetryable classifies an error from doOnce, adding HTTP status
// awareness on top of retry.IsRetryable's network/context handling.
func httpRetryable(err error) bool {
	var he *httpHTTPError
	if errors.As(err, &he) {
		return isRetryableHTTPStatus(he.StatusCode)
	}
	return retry.IsRetryable(err)
}

// httpClient is the shared transport every HTTP-backed adapter uses:
// JSON request/response with retry, exponential backoff, and
// Retry-After header support, the same shape as the teacher's OpenAI
// client's do().
type httpClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	stage      string
	limiter    *rate.Limiter
}

func newHTTPClient(log *logger.Logger, baseURL, apiKey string, timeout time.Duration, maxRetries int, stage string) *httpClient {
	return &httpClient{
		log:        log,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		stage:      stage,
	}
}

// withRateLimit caps outbound requests to ratePerSec queries per
// second (burst 1), the way a shared model endpoint's quota is
// respected across concurrently rendering scenes. A non-positive rate
// leaves the client unlimited.
func (c *httpClient) withRateLimit(ratePerSec float64) *httpClient {
	if ratePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return c
}

// postJSON posts body as JSON to path and decodes the response into
// out, retrying per httpRetryable/retry.Run. maxRetries, if > 0,
// overrides the client's configured default for this call so a job's
// retry_attempts option can flow through per-request.
func (c *httpClient) postJSON(ctx context.Context, path string, body any, out any, maxRetries int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pipeerr.NewModelOutput(c.stage, "encode request body", err)
	}

	attempts := c.maxRetries
	if maxRetries > 0 {
		attempts = maxRetries
	}
	policy := retry.DefaultPolicy(attempts)
	policy.Retryable = httpRetryable

	_, err = retry.Run(ctx, policy, func(ctx context.Context, attempt int) (struct{}, error) {
		respBody, retryAfter, doErr := c.doOnce(ctx, path, payload)
		if doErr != nil {
			if c.log != nil && attempt < attempts {
				c.log.Warn("adapter http call failed, retrying",
					"stage", c.stage, "attempt", attempt, "error", doErr.Error())
			}
			if retryAfter > 0 {
				select {
				case <-ctx.Done():
					return struct{}{}, ctx.Err()
				case <-time.After(retryAfter):
				}
			}
			return struct{}{}, doErr
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return struct{}{}, pipeerr.NewModelOutput(c.stage, "decode response body", err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return pipeerr.NewCancelled(c.stage)
		}
		var je *pipeerr.JobError
		if errors.As(err, &je) {
			return err
		}
		return pipeerr.NewExternalService(c.stage, "external model call failed", err)
	}
	return nil
}

func (c *httpClient) doOnce(ctx context.Context, path string, payload []byte) ([]byte, time.Duration, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var retryAfter time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, perr := strconv.Atoi(v); perr == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, &httpHTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, 0, nil
}
