// Package backend is the REST client for the NightVibe API. Each feature
// area has its own file of typed calls; all of them go through Client.do,
// which attaches the bearer token, traces the request and maps failures to
// the error taxonomy in errors.go.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nightvibe/nightvibe/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxErrorBody = 64 << 10

// TokenSource supplies the current auth token; "" means logged out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client issues authenticated JSON requests against the API base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
	tracer  trace.Tracer
}

// New creates a client. A nil tokens source makes every authenticated call
// fail with ErrUnauthenticated.
func New(baseURL string, timeout time.Duration, tokens TokenSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
		tracer:  otel.Tracer("nightvibe/backend"),
	}
}

// request describes one API call. route is the templated path used for
// metrics and span names; path is the concrete one.
type request struct {
	method string
	route  string
	path   string
	query  url.Values
	body   any
	public bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	var token string
	if !r.public {
		if c.tokens != nil {
			t, err := c.tokens.Token(ctx)
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			token = t
		}
		if token == "" {
			return ErrUnauthenticated
		}
	}

	ctx, span := c.tracer.Start(ctx, r.method+" "+r.route, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", r.method),
		attribute.String("http.route", r.route),
	)

	start := time.Now()
	status, err := c.roundTrip(ctx, r, token, out)
	metrics.ObserveBackendRequest(r.method, r.route, status, time.Since(start))
	if status > 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("api request failed",
			zap.String("method", r.method),
			zap.String("route", r.route),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, r request, token string, out any) (int, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return 0, fmt.Errorf("encode %s body: %w", r.route, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, reader)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", r.route, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &NetworkError{Op: r.method + " " + r.route, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &NetworkError{Op: "read " + r.route, Err: err}
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", r.route, err)
	}
	return resp.StatusCode, nil
}

// unwrapData returns the "data" member of a {"success":..,"data":..}
// envelope, or raw unchanged when the body is not enveloped.
func unwrapData(raw []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return raw
	}
	return env.Data
}

// serverMessage extracts the human-readable error text from an error body.
func serverMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return q
}
