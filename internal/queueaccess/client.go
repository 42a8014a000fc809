package queueaccess

import (
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

	"slidecast/internal/api"
)

// ErrAPIUnavailable is returned when no daemon answers on the API bind address.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// Client talks to the daemon HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for bind ("host:port" or a full URL). token is
// sent as a bearer credential when set.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Ping checks that a daemon answers at the configured address.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.DaemonStatus(ctx)
	return err
}

// DaemonStatus fetches the daemon runtime summary.
func (c *Client) DaemonStatus(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// StartJob enqueues a job.
func (c *Client) StartJob(ctx context.Context, req api.StartRequest) (string, error) {
	var out api.StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// ListJobs lists jobs, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, statuses []string) ([]api.Job, error) {
	values := url.Values{}
	for _, status := range statuses {
		if status = strings.TrimSpace(status); status != "" {
			values.Add("status", status)
		}
	}
	var out api.JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", values, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob fetches a job with its per-slide status.
func (c *Client) GetJob(ctx context.Context, id string) (api.JobDetailResponse, error) {
	var out api.JobDetailResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// GetResult fetches the artifacts of a completed job.
func (c *Client) GetResult(ctx context.Context, id string) (api.JobResult, error) {
	var out api.JobResult
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/result", nil, nil, &out)
	return out, err
}

// RetryJob resumes one failed or cancelled job.
func (c *Client) RetryJob(ctx context.Context, id string) (api.RetryJobsResult, error) {
	var out api.RetryJobsResult
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, nil, &out)
	return out, err
}

// RetryAll resumes every failed or cancelled job.
func (c *Client) RetryAll(ctx context.Context) (api.RetryJobsResult, error) {
	var out api.RetryJobsResult
	err := c.do(ctx, http.MethodPost, "/api/jobs/retry", nil, nil, &out)
	return out, err
}

// RerunJob clones a narrated job with new settings.
func (c *Client) RerunJob(ctx context.Context, id string, req api.RerunRequest) (string, error) {
	var out api.StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/rerun", nil, req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CancelJob stops a queued or running job.
func (c *Client) CancelJob(ctx context.Context, id string) (api.CancelJobResult, error) {
	var out api.CancelJobResult
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil, &out)
	return out, err
}

// ClearCompleted removes completed jobs.
func (c *Client) ClearCompleted(ctx context.Context) (int64, error) {
	var out api.ClearResponse
	if err := c.do(ctx, http.MethodDelete, "/api/jobs", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAPIUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(raw))
		}
		return api.ErrorFromResponse(resp.StatusCode, apiErr)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
