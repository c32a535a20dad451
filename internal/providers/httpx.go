package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/metrics"
)

// HTTPClient wraps the shared http.Client with timeout handling,
// status classification and per-call instrumentation.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewHTTPClient builds the shared provider HTTP client. timeout is the
// default per-call budget; callers may pass a tighter context.
func NewHTTPClient(timeout time.Duration, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: timeout,
		log:     log.With().Str("component", "httpx").Logger(),
	}
}

// ClassifyStatus maps an HTTP status code to an ErrorKind.
func ClassifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrHTTP5xx
	case code >= 400:
		return ErrHTTP4xx
	default:
		return ErrNone
	}
}

// GetJSON performs a GET against url and decodes the JSON body into out.
// The returned ErrorKind is ErrNone on success.
func (h *HTTPClient) GetJSON(ctx context.Context, source, url string, out interface{}) (time.Duration, ErrorKind, string) {
	start := time.Now()
	body, latency, kind, detail := h.GetBody(ctx, source, url)
	if kind != ErrNone {
		return latency, kind, detail
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.ProviderCalls.WithLabelValues(source, string(ErrSchema)).Inc()
		return time.Since(start), ErrSchema, err.Error()
	}
	return latency, ErrNone, ""
}

// GetBody performs a GET against url and returns the raw body.
func (h *HTTPClient) GetBody(ctx context.Context, source, url string) ([]byte, time.Duration, ErrorKind, string) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, time.Since(start), ErrNetwork, err.Error()
	}
	req.Header.Set("User-Agent", "intelrun/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		kind := ErrNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			kind = ErrTimeout
		}
		metrics.ProviderCalls.WithLabelValues(source, string(kind)).Inc()
		return nil, time.Since(start), kind, err.Error()
	}
	defer resp.Body.Close()

	if kind := ClassifyStatus(resp.StatusCode); kind != ErrNone {
		metrics.ProviderCalls.WithLabelValues(source, string(kind)).Inc()
		h.log.Debug().Str("source", source).Int("status", resp.StatusCode).Msg("provider http error")
		return nil, time.Since(start), kind, fmt.Sprintf("status_%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(source, string(ErrNetwork)).Inc()
		return nil, time.Since(start), ErrNetwork, err.Error()
	}
	metrics.ProviderCalls.WithLabelValues(source, "ok").Inc()
	return body, time.Since(start), ErrNone, ""
}
