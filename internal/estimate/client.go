package estimate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"homematch/internal/metrics"
)

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// Retries is the number of extra attempts after the first one fails.
	Retries int
	Backoff time.Duration
	// FailureThreshold is the consecutive failure count that opens the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = 100 * time.Millisecond
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	return c
}

// Client calls POST {BaseURL}/predict. Transport errors and 5xx responses are
// retried; 4xx responses are not. Each Estimate counts once toward the breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	cb         *gobreaker.CircuitBreaker[float64]
	log        zerolog.Logger
}

type predictResponse struct {
	PredictedPrice *float64 `json:"predicted_price"`
}

// statusError is a non-2xx answer from the model service.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status=%d body=%s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests
}

func NewClient(cfg ClientConfig, log zerolog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("estimator: base url is required")
	}
	log = log.With().Str("component", "estimator").Logger()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   3 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	threshold := cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[float64](gobreaker.Settings{
		Name:        "price-estimator",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Rejected input is the caller's fault, not the service's.
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) && !se.retryable() {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state change")
		},
	})

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		retries:    cfg.Retries,
		backoff:    cfg.Backoff,
		cb:         cb,
		log:        log,
	}, nil
}

func (c *Client) Info() ModelInfo {
	return ModelInfo{Endpoint: c.baseURL + "/predict", BreakerState: c.cb.State().String()}
}

func (c *Client) Estimate(ctx context.Context, f Features) (float64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	body, err := json.Marshal(f)
	if err != nil {
		return 0, fmt.Errorf("encode features: %w", err)
	}

	price, err := c.cb.Execute(func() (float64, error) {
		return c.predict(ctx, body)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EstimatorCalls.WithLabelValues("open").Inc()
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case err != nil:
		metrics.EstimatorCalls.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Msg("estimate failed")
		return 0, fmt.Errorf("estimate price: %w", err)
	}
	metrics.EstimatorCalls.WithLabelValues("ok").Inc()
	return price, nil
}

func (c *Client) predict(ctx context.Context, body []byte) (float64, error) {
	url := c.baseURL + "/predict"
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(c.backoff):
			}
		}
		price, err := c.once(ctx, url, body)
		if err == nil {
			return price, nil
		}
		lastErr = err
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return 0, err
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		c.log.Debug().Err(err).Int("attempt", attempt+1).Msg("predict attempt failed")
	}
	return 0, lastErr
}

func (c *Client) once(ctx context.Context, url string, body []byte) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("decode prediction: %w", err)
	}
	if out.PredictedPrice == nil {
		return 0, errors.New("prediction missing predicted_price")
	}
	return *out.PredictedPrice, nil
}
