// Package client fetches dashboard data from the divyadrishti HTTP API.
//
// Every call is paced by a shared rate limiter and retried with bounded
// exponential backoff on transport failures, 429 and 5xx. A 404 becomes
// ErrNotFound and is never retried; any other non-2xx becomes a *StatusError.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"

	"github.com/abelbrown/divyadrishti/internal/model"
	"github.com/abelbrown/divyadrishti/internal/otel"
)

// ErrNotFound is returned when the API answers 404.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response other than 404.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.Code, e.Body)
}

// Temporary reports whether a retry may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Observer receives one call per finished HTTP attempt. code is 0 for a
// transport error.
type Observer interface {
	ObserveRequest(endpoint string, code int, d time.Duration)
}

// Options configures a Client. Zero values take defaults.
type Options struct {
	Timeout    time.Duration // per attempt
	Rate       float64       // requests per second
	Burst      int
	Retries    int // additional attempts after the first
	BackoffMin time.Duration
	BackoffMax time.Duration
	UserAgent  string
	HTTP       *http.Client
	Events     *otel.Logger
	Observer   Observer
}

func (o *Options) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Rate <= 0 {
		o.Rate = 4
	}
	if o.Burst <= 0 {
		o.Burst = 4
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = 250 * time.Millisecond
	}
	if o.BackoffMax < o.BackoffMin {
		o.BackoffMax = 8 * o.BackoffMin
	}
	if o.UserAgent == "" {
		o.UserAgent = "divyadrishti/1.0"
	}
	if o.HTTP == nil {
		o.HTTP = &http.Client{Timeout: o.Timeout}
	}
}

// Client talks to one API base URL. Safe for concurrent use.
type Client struct {
	base    *url.URL
	opts    Options
	limiter *rate.Limiter
}

// New returns a client for baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	opts.defaults()
	return &Client{
		base:    u,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.base.String() }

// URL resolves an API path with optional query parameters.
func (c *Client) URL(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// TrendingStories fetches the trending story snapshot.
func (c *Client) TrendingStories(ctx context.Context, limit int) ([]model.Story, error) {
	var out []model.Story
	err := c.getJSON(ctx, "/stories/trending", limitQuery(limit), &out)
	return out, err
}

// Story fetches one story.
func (c *Client) Story(ctx context.Context, id int64) (model.Story, error) {
	var out model.Story
	err := c.getJSON(ctx, "/stories/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

// Comments fetches the comment forest of a story. Flat responses that carry
// parent ids are nested before returning.
func (c *Client) Comments(ctx context.Context, storyID int64) ([]model.Comment, error) {
	var flat []model.Comment
	if err := c.getJSON(ctx, "/stories/"+strconv.FormatInt(storyID, 10)+"/comments", nil, &flat); err != nil {
		return nil, err
	}
	return model.Nest(flat, storyID), nil
}

// TopMetrics fetches the top metric snapshot.
func (c *Client) TopMetrics(ctx context.Context, limit int) ([]model.MetricNode, error) {
	var out []model.MetricNode
	err := c.getJSON(ctx, "/metrics/top", limitQuery(limit), &out)
	return out, err
}

// Rankings fetches metrics ordered for (window, lens). The server's order is
// returned unchanged.
func (c *Client) Rankings(ctx context.Context, window model.Window, lens model.Lens) ([]model.MetricNode, error) {
	q := url.Values{"window": {string(window)}, "lens": {string(lens)}}
	var out []model.MetricNode
	err := c.getJSON(ctx, "/rankings", q, &out)
	return out, err
}

// MetricDetail fetches a metric with its rollup for window.
func (c *Client) MetricDetail(ctx context.Context, id string, window model.Window) (model.MetricDetail, error) {
	var out model.MetricDetail
	var q url.Values
	if window != "" {
		q = url.Values{"window": {string(window)}}
	}
	err := c.getJSON(ctx, "/metrics/"+url.PathEscape(id), q, &out)
	return out, err
}

// MetricSeries fetches the time series of a metric.
func (c *Client) MetricSeries(ctx context.Context, id string, window model.Window) ([]model.SeriesPoint, error) {
	var q url.Values
	if window != "" {
		q = url.Values{"window": {string(window)}}
	}
	var out []model.SeriesPoint
	err := c.getJSON(ctx, "/metrics/"+url.PathEscape(id)+"/series", q, &out)
	return out, err
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	body, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.opts.Events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindFetchError, Comp: "client", Endpoint: path, Err: err.Error()})
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}

// get performs a GET with pacing and retry, returning the body of a 2xx.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	b := &backoff.Backoff{
		Min:    c.opts.BackoffMin,
		Max:    c.opts.BackoffMax,
		Factor: 2,
		Jitter: true,
	}
	target := c.URL(path, q)

	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, retryAfter, err := c.once(ctx, path, target)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", path, ctx.Err())
		}
		lastErr = err
		if !retryable(err) || attempt == c.opts.Retries {
			break
		}

		delay := b.Duration()
		if retryAfter > delay {
			delay = min(retryAfter, c.opts.BackoffMax)
		}
		c.opts.Events.Emit(otel.Event{
			Level:    otel.LevelWarn,
			Kind:     otel.KindFetchRetry,
			Comp:     "client",
			Endpoint: path,
			Count:    attempt + 1,
			Dur:      delay,
			Err:      err.Error(),
		})
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%s: %w", path, ctx.Err())
		case <-t.C:
		}
	}

	if !errors.Is(lastErr, ErrNotFound) {
		c.opts.Events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindFetchError, Comp: "client", Endpoint: path, Err: lastErr.Error()})
	}
	return nil, lastErr
}

// once performs a single attempt. retryAfter is the server's Retry-After
// hint on 429, or zero.
func (c *Client) once(ctx context.Context, path, target string) (body []byte, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	start := time.Now()
	resp, err := c.opts.HTTP.Do(req)
	if err != nil {
		c.observe(path, 0, time.Since(start))
		return nil, 0, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	elapsed := time.Since(start)
	c.observe(path, resp.StatusCode, elapsed)
	c.opts.Events.Emit(otel.Event{
		Level:    otel.LevelDebug,
		Kind:     otel.KindFetchRequest,
		Comp:     "client",
		Endpoint: path,
		Status:   resp.StatusCode,
		Dur:      elapsed,
	})
	if err != nil {
		return nil, 0, &transportError{err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, 0, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if s, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && s > 0 {
			retryAfter = time.Duration(s) * time.Second
		}
	}
	return nil, retryAfter, &StatusError{Endpoint: path, Code: resp.StatusCode, Body: snippet(body)}
}

func (c *Client) observe(path string, code int, d time.Duration) {
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveRequest(Route(path), code, d)
	}
}

// Route collapses ids out of an API path so it can label a metric:
// "/stories/42/comments" becomes "/stories/{id}/comments".
func Route(path string) string {
	parts := strings.Split(path, "/")
	for i := 2; i < len(parts); i++ {
		switch {
		case parts[i-1] == "stories" && parts[i] != "trending":
			parts[i] = "{id}"
		case parts[i-1] == "metrics" && parts[i] != "top":
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Temporary()
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
