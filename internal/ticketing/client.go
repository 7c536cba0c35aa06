// Package ticketing is the client for the third-party ticketing search API.
//
// Every call returns a source.Result or source.Item and never a Go error:
// failures degrade to an empty result whose Status says what went wrong.
// All requests share one in-flight limiter and, when configured, one circuit
// breaker, so concurrent callers such as the featured refresher cannot
// overwhelm the rate-limited API.
package ticketing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/aabubakar17/meetEasy/internal/config"
	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/metrics"
	"github.com/aabubakar17/meetEasy/internal/source"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	searchPath = "/discovery/v2/events.json"
	detailPath = "/discovery/v2/events/%s.json"

	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 8 << 20
)

// Operation labels used for logs and metrics.
const (
	opKeyword        = "keyword"
	opClassification = "classification"
	opDetail         = "detail"
)

// Client queries the ticketing API.
type Client struct {
	baseURL     string
	apiKey      string
	defaultCity string
	maxRetries  int
	retryStep   time.Duration

	httpClient *http.Client
	limiter    *semaphore.Weighted
	breaker    *gobreaker.CircuitBreaker
	timer      backoff.Timer

	log     *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = logging.OrNop(log) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTimer sets the timer used to wait between rate-limit retries.
func WithTimer(t backoff.Timer) Option {
	return func(c *Client) { c.timer = t }
}

// New creates a client from configuration.
func New(cfg config.TicketingConfig, opts ...Option) *Client {
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 10
	}
	step := cfg.RetryStep
	if step <= 0 {
		step = time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		defaultCity: cfg.DefaultCity,
		maxRetries:  cfg.MaxRetries,
		retryStep:   step,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     semaphore.NewWeighted(maxInFlight),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.BreakerFailures > 0 {
		failures := cfg.BreakerFailures
		log := c.log
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "ticketing",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	return c
}

// MaxRetries returns the configured rate-limit retry budget.
func (c *Client) MaxRetries() int {
	return c.maxRetries
}

// SearchByKeyword searches by free-text keyword and city. Either may be
// empty; an empty keyword searches the city alone.
func (c *Client) SearchByKeyword(ctx context.Context, keyword, location string, pageSize int) source.Result[event.External] {
	q := c.query(pageSize)
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	if location != "" {
		q.Set("city", location)
	}

	resp, err := c.get(ctx, opKeyword, searchPath, q)
	if err != nil {
		return c.degrade(opKeyword, err, zap.String("keyword", keyword), zap.String("location", location))
	}

	switch resp.status {
	case http.StatusOK:
		return c.decodeList(opKeyword, resp.body)
	case http.StatusTooManyRequests:
		c.log.Warn("ticketing rate limited", zap.String("operation", opKeyword), zap.String("keyword", keyword))
		return source.Fail[event.External](source.StatusRateLimited, rateLimitError(opKeyword))
	default:
		return c.degrade(opKeyword, statusError(opKeyword, resp.status), zap.String("keyword", keyword))
	}
}

// SearchByClassification searches by category in the default city. A 429
// response is retried while retriesRemaining > 0, waiting
// step * (maxRetries + 1 - retriesRemaining) before each retry; with the
// default budget of 3 that is 1s, 2s then 3s. retriesRemaining is clamped
// to the configured budget. Once the budget is spent the result is empty
// with StatusRateLimited.
func (c *Client) SearchByClassification(ctx context.Context, category string, pageSize, retriesRemaining int) source.Result[event.External] {
	q := c.query(pageSize)
	q.Set("classificationName", category)
	if c.defaultCity != "" {
		q.Set("city", c.defaultCity)
	}

	if retriesRemaining > c.maxRetries {
		retriesRemaining = c.maxRetries
	}
	if retriesRemaining < 0 {
		retriesRemaining = 0
	}

	var out source.Result[event.External]
	operation := func() error {
		resp, err := c.get(ctx, opClassification, searchPath, q)
		if err != nil {
			return backoff.Permanent(err)
		}
		switch resp.status {
		case http.StatusOK:
			out = c.decodeList(opClassification, resp.body)
			return nil
		case http.StatusTooManyRequests:
			return rateLimitError(opClassification)
		default:
			return backoff.Permanent(statusError(opClassification, resp.status))
		}
	}

	policy := backoff.WithContext(newLinearBackOff(c.retryStep, c.maxRetries+1, retriesRemaining), ctx)
	notify := func(err error, wait time.Duration) {
		c.metrics.IncRetry()
		c.log.Info("ticketing rate limited, retrying",
			zap.String("category", category),
			zap.Duration("wait", wait))
	}

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, c.timer)
	switch {
	case err == nil:
		return out
	case apperrors.HasCode(err, apperrors.CodeRateLimited):
		c.log.Warn("ticketing rate limit retries exhausted", zap.String("category", category))
		return source.Fail[event.External](source.StatusRateLimited, err)
	default:
		return c.degrade(opClassification, err, zap.String("category", category))
	}
}

// FetchByID returns the full detail of one event. A 404 is a miss, not an error.
func (c *Client) FetchByID(ctx context.Context, id string) source.Item[event.External] {
	if strings.TrimSpace(id) == "" {
		return source.Missing[event.External]()
	}

	resp, err := c.get(ctx, opDetail, fmt.Sprintf(detailPath, url.PathEscape(id)), c.query(0))
	if err != nil {
		c.log.Warn("ticketing detail failed", zap.String("id", id), zap.Error(err))
		return source.FailItem[event.External](statusFor(err), err)
	}

	switch resp.status {
	case http.StatusOK:
		var ev event.External
		if err := json.Unmarshal(resp.body, &ev); err != nil {
			err = apperrors.NewUpstreamError(apperrors.CodeBadPayload, "decode event detail", err)
			c.log.Warn("ticketing detail undecodable", zap.String("id", id), zap.Error(err))
			return source.FailItem[event.External](source.StatusUnavailable, err)
		}
		return source.Found(&ev)
	case http.StatusNotFound:
		return source.Missing[event.External]()
	case http.StatusTooManyRequests:
		return source.FailItem[event.External](source.StatusRateLimited, rateLimitError(opDetail))
	default:
		err := statusError(opDetail, resp.status)
		c.log.Warn("ticketing detail failed", zap.String("id", id), zap.Error(err))
		return source.FailItem[event.External](source.StatusUnavailable, err)
	}
}

func (c *Client) query(pageSize int) url.Values {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	if pageSize > 0 {
		q.Set("size", strconv.Itoa(pageSize))
	}
	return q
}

type response struct {
	status int
	body   []byte
}

// get performs one GET through the limiter and the breaker. Transport
// failures and 5xx responses count against the breaker; every other status
// is returned for the caller to interpret.
func (c *Client) get(ctx context.Context, op, path string, q url.Values) (*response, error) {
	if err := c.limiter.Acquire(ctx, 1); err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.CodeUpstreamFailed, "limiter acquire", err)
	}
	defer c.limiter.Release(1)

	start := time.Now()
	do := func() (interface{}, error) {
		return c.do(ctx, path, q)
	}

	var (
		result interface{}
		err    error
	)
	if c.breaker != nil {
		result, err = c.breaker.Execute(do)
	} else {
		result, err = do()
	}

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			err = apperrors.NewUpstreamError(apperrors.CodeCircuitOpen, "ticketing circuit open", err)
		}
		c.metrics.ObserveUpstream(op, "error", time.Since(start))
		return nil, err
	}

	resp := result.(*response)
	c.metrics.ObserveUpstream(op, strconv.Itoa(resp.status), time.Since(start))
	return resp, nil
}

func (c *Client) do(ctx context.Context, path string, q url.Values) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.CodeUpstreamFailed, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.CodeUpstreamFailed, "ticketing request", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.CodeUpstreamFailed, "read response", err)
	}
	if res.StatusCode >= 500 {
		return nil, statusError(path, res.StatusCode)
	}
	return &response{status: res.StatusCode, body: body}, nil
}

func (c *Client) decodeList(op string, body []byte) source.Result[event.External] {
	var page searchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		err = apperrors.NewUpstreamError(apperrors.CodeBadPayload, "decode search response", err)
		return c.degrade(op, err)
	}
	return source.OK(page.events())
}

func (c *Client) degrade(op string, err error, fields ...zap.Field) source.Result[event.External] {
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	c.log.Warn("ticketing search degraded to empty result", fields...)
	return source.Fail[event.External](statusFor(err), err)
}

func statusFor(err error) source.Status {
	if apperrors.HasCode(err, apperrors.CodeRateLimited) {
		return source.StatusRateLimited
	}
	return source.StatusUnavailable
}

func rateLimitError(op string) error {
	return apperrors.NewUpstreamError(apperrors.CodeRateLimited, op+": rate limited", nil)
}

func statusError(op string, status int) error {
	return apperrors.NewUpstreamError(apperrors.CodeUpstreamFailed,
		fmt.Sprintf("%s: unexpected status %d", op, status), nil).
		WithDetails(map[string]interface{}{"status": status})
}
