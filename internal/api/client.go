package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mediagrab/internal/jobs"
)

const defaultHTTPTimeout = 15 * time.Second

// ErrUnavailable is returned when no API address is configured.
var ErrUnavailable = errors.New("api address not configured")

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api returned status %d", e.Code)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Detail)
}

// IsNotFound reports whether err is a 404 reply.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// StreamEvent is one frame of a progress stream. Data is left raw so callers
// can decode it according to Event.
type StreamEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client talks to a running daemon over HTTP.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	stream *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the client used for plain requests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient builds a client for bind, a host:port or URL. token is sent as a
// bearer token when non-empty.
func NewClient(bind, token string, opts ...ClientOption) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	c := &Client{
		base:   base,
		token:  strings.TrimSpace(token),
		http:   &http.Client{Timeout: defaultHTTPTimeout},
		stream: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the daemon address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Info previews a URL.
func (c *Client) Info(ctx context.Context, rawURL string) (InfoResponse, error) {
	var out InfoResponse
	err := c.do(ctx, http.MethodPost, "/api/info", InfoRequest{URL: rawURL}, &out)
	return out, err
}

// Download submits a job.
func (c *Client) Download(ctx context.Context, req DownloadRequest) (DownloadResponse, error) {
	var out DownloadResponse
	err := c.do(ctx, http.MethodPost, "/api/download", req, &out)
	return out, err
}

// Jobs lists every job, newest first.
func (c *Client) Jobs(ctx context.Context) (JobsResponse, error) {
	var out JobsResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &out)
	return out, err
}

// Job fetches one job.
func (c *Client) Job(ctx context.Context, id string) (jobs.Job, error) {
	var out jobs.Job
	err := c.do(ctx, http.MethodGet, "/api/job/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Delete cancels and removes a job.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/job/"+url.PathEscape(id), nil, &OKResponse{})
}

// Health reports daemon and dependency state.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

// Storage reports disk usage.
func (c *Client) Storage(ctx context.Context) (StorageResponse, error) {
	var out StorageResponse
	err := c.do(ctx, http.MethodGet, "/api/storage", nil, &out)
	return out, err
}

// LocalFiles lists artifacts on disk.
func (c *Client) LocalFiles(ctx context.Context) (LocalFilesResponse, error) {
	var out LocalFilesResponse
	err := c.do(ctx, http.MethodGet, "/api/local-files", nil, &out)
	return out, err
}

// CleanAll removes every job and file.
func (c *Client) CleanAll(ctx context.Context) (OKResponse, error) {
	var out OKResponse
	err := c.do(ctx, http.MethodPost, "/api/clean-all", nil, &out)
	return out, err
}

// Follow streams progress events for id until the done frame, ctx ends or fn
// returns an error.
func (c *Client) Follow(ctx context.Context, id string, fn func(StreamEvent) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/progress/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeStatusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &event); err != nil {
			return fmt.Errorf("decode stream frame: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
		if event.Event == "done" {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return io.ErrUnexpectedEOF
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{Code: resp.StatusCode}
	var payload ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err == nil {
		statusErr.Detail = payload.Detail
	}
	return statusErr
}
