// Package apiclient talks to the project-management REST backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:5000/api"

type requestIDKey struct{}

// ContextWithRequestID makes calls made with ctx carry id as X-Request-ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id set by ContextWithRequestID, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Metrics counts upstream calls by route template, method and status.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the upstream call collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "Total number of backend API calls",
			},
			[]string{"route", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_request_duration_seconds",
				Help:    "Backend API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *Metrics) observe(route, method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, status).Inc()
	m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Client calls the backend with the bearer token from its TokenStore.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-call timeout. Zero means calls are bounded only by their context.
// The http.Client is copied first, so one passed to WithHTTPClient is left as is.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records every call on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for baseURL (including the /api prefix).
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore("")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tokens returns the token store in use.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// WithTokens returns a shallow copy of c that authenticates with tokens.
func (c *Client) WithTokens(tokens TokenStore) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

// doJSON sends body (if any) as JSON and decodes the response into out.
// It reports noContent for 204 responses, leaving out untouched.
func (c *Client) doJSON(ctx context.Context, method, route, path string, body, out any) (noContent bool, err error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode %s body: %w", route, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("build %s request: %w", route, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, route, out)
}

func (c *Client) send(req *http.Request, route string, out any) (bool, error) {
	token, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn("could not read stored token", zap.Error(err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	reqID := RequestIDFrom(req.Context())
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)

	log := c.logger.With(
		zap.String("method", req.Method),
		zap.String("endpoint", req.URL.Path),
		zap.String("request_id", reqID),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(route, req.Method, "error", time.Since(start))
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return false, fmt.Errorf("%s %s: %w", req.Method, route, ctxErr)
		}
		connErr := &ConnectionError{BaseURL: c.baseURL, Endpoint: route, Err: err}
		log.Error("connection failure", zap.Error(err))
		return false, connErr
	}
	defer resp.Body.Close()
	c.metrics.observe(route, req.Method, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := c.errorFrom(resp, route)
		log.Error("api error", zap.Int("status", apiErr.Status), zap.String("message", apiErr.Message))
		if resp.StatusCode == http.StatusUnauthorized {
			if err := c.tokens.Clear(); err != nil {
				log.Warn("could not clear stored token", zap.Error(err))
			}
		}
		return false, apiErr
	}

	if resp.StatusCode == http.StatusNoContent {
		return true, nil
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Error("unexpected response body", zap.Error(err))
		return false, fmt.Errorf("decode %s response: %w", route, err)
	}
	log.Debug("api call ok", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))
	return false, nil
}

func (c *Client) errorFrom(resp *http.Response, route string) *APIError {
	statusText := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if statusText == "" {
		statusText = http.StatusText(resp.StatusCode)
	}
	apiErr := &APIError{
		Status:     resp.StatusCode,
		StatusText: statusText,
		Message:    fmt.Sprintf("Erro %d: %s", resp.StatusCode, statusText),
		Endpoint:   route,
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Debug("could not read error body", zap.Error(err))
		return apiErr
	}
	msg, ok, err := messageFromBody(data)
	if err != nil {
		c.logger.Debug("error body is not JSON", zap.Error(err))
		return apiErr
	}
	if ok {
		apiErr.Message = msg
	}
	return apiErr
}

// get fetches one resource. A 204 yields nil.
func get[T any](ctx context.Context, c *Client, route, path string) (*T, error) {
	return call[T](ctx, c, http.MethodGet, route, path, nil)
}

func call[T any](ctx context.Context, c *Client, method, route, path string, body any) (*T, error) {
	var out T
	noContent, err := c.doJSON(ctx, method, route, path, body, &out)
	if err != nil || noContent {
		return nil, err
	}
	return &out, nil
}

// list fetches a collection, returning an empty slice for 204.
func list[T any](ctx context.Context, c *Client, route, path string) ([]T, error) {
	out := []T{}
	if _, err := c.doJSON(ctx, http.MethodGet, route, path, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
