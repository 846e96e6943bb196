package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FinChat/internal/service/metrics"
	"FinChat/pkg/config"
	xhttp "FinChat/pkg/http"
)

// HTTPServiceBase centralizes client construction and JSON POSTs to the analytics backend.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
	retries int
}

func NewHTTPServiceBase(cfg config.FastAPIConfig, opts ...xhttp.ClientOption) *HTTPServiceBase {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	metrics.Register()
	return &HTTPServiceBase{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  xhttp.NewClient(append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)...),
		retries: cfg.MaxRetries,
	}
}

// PostJSON posts payload to path under the base URL and decodes the JSON reply into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return errors.New("backend http client not initialized")
	}

	start := time.Now()
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
	metrics.BackendLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendErrors.WithLabelValues(path, errorReason(err)).Inc()
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transport errors and 5xx replies; 4xx replies are returned at once.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	attempts := b.retries + 1
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) || i == attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

func errorReason(err error) string {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("%dxx", se.Code/100)
	}
	return "transport"
}
