package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/internal/httpclient"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/sync"
	"github.com/teranos/punchclock/timesheet"
)

var (
	_ sync.Remote        = (*Client)(nil)
	_ sync.HealthChecker = (*Client)(nil)
)

// maxErrorBody bounds how much of an error response is read into messages
const maxErrorBody = 4 << 10

// Config configures a Client
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration // per request (default 20s)
	// HTTPClient overrides the transport, e.g. httptest.Server.Client()
	HTTPClient *http.Client
}

// Client talks to the remote authority on behalf of one session token
type Client struct {
	base   *url.URL
	token  string
	http   *httpclient.Client
	logger *zap.SugaredLogger
}

// New creates a client for the remote at cfg.URL
func New(cfg Config, log *zap.SugaredLogger) (*Client, error) {
	base, err := httpclient.ParseBaseURL(cfg.URL)
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "invalid remote URL"), "set sync.remote_url in am.toml")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	hc := httpclient.New(cfg.Timeout)
	if cfg.HTTPClient != nil {
		hc = httpclient.Wrap(cfg.HTTPClient)
	}
	if log == nil {
		log = logger.Logger
	}

	return &Client{
		base:   base,
		token:  cfg.Token,
		http:   hc,
		logger: log.With(logger.FieldComponent, "remote"),
	}, nil
}

// BaseURL returns the remote's base URL
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	c.logger.Debugw("Remote request",
		logger.FieldMethod, method,
		logger.FieldPath, path,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized {
		return errors.NewAuthError("remote rejected the session: %s", readError(resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("%s %s: remote returned %d: %s", method, path, resp.StatusCode, readError(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", path)
	}
	return nil
}

func readError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er ErrorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		return er.Error
	}
	if len(data) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	return string(data)
}

func pushItems[T any](ctx context.Context, c *Client, et mutation.EntityType, items []T, op mutation.Operation) (sync.Result, error) {
	req := SyncRequest{Operation: op, Items: make([]json.RawMessage, len(items))}
	for i, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return sync.Result{}, errors.Wrapf(err, "failed to encode %s", et)
		}
		req.Items[i] = data
	}

	var res sync.Result
	if err := c.do(ctx, http.MethodPost, PathSyncPrefix+Resource(et), req, &res); err != nil {
		return sync.Result{}, err
	}
	return res, nil
}

func listItems[T any](ctx context.Context, c *Client, et mutation.EntityType) ([]T, error) {
	var res ListResponse[T]
	if err := c.do(ctx, http.MethodGet, PathListPrefix+Resource(et), nil, &res); err != nil {
		return nil, err
	}
	if res.Items == nil {
		res.Items = []T{}
	}
	return res.Items, nil
}

// SyncJobs applies op to jobs on the remote
func (c *Client) SyncJobs(ctx context.Context, jobs []timesheet.Job, op mutation.Operation) (sync.Result, error) {
	return pushItems(ctx, c, mutation.EntityJob, jobs, op)
}

// SyncTimeEntries applies op to entries on the remote
func (c *Client) SyncTimeEntries(ctx context.Context, entries []timesheet.TimeEntry, op mutation.Operation) (sync.Result, error) {
	return pushItems(ctx, c, mutation.EntityTimeEntry, entries, op)
}

// SyncPayPeriods applies op to periods on the remote
func (c *Client) SyncPayPeriods(ctx context.Context, periods []timesheet.PayPeriod, op mutation.Operation) (sync.Result, error) {
	return pushItems(ctx, c, mutation.EntityPayPeriod, periods, op)
}

// GetJobs returns all of the user's jobs
func (c *Client) GetJobs(ctx context.Context) ([]timesheet.Job, error) {
	return listItems[timesheet.Job](ctx, c, mutation.EntityJob)
}

// GetTimeEntries returns all of the user's time entries
func (c *Client) GetTimeEntries(ctx context.Context) ([]timesheet.TimeEntry, error) {
	return listItems[timesheet.TimeEntry](ctx, c, mutation.EntityTimeEntry)
}

// GetPayPeriods returns all of the user's pay periods
func (c *Client) GetPayPeriods(ctx context.Context) ([]timesheet.PayPeriod, error) {
	return listItems[timesheet.PayPeriod](ctx, c, mutation.EntityPayPeriod)
}

// HealthInfo fetches the remote's health document
func (c *Client) HealthInfo(ctx context.Context) (HealthResponse, error) {
	var h HealthResponse
	if err := c.do(ctx, http.MethodGet, PathHealth, nil, &h); err != nil {
		return h, err
	}
	return h, nil
}

// Health reports whether the remote is up
func (c *Client) Health(ctx context.Context) error {
	h, err := c.HealthInfo(ctx)
	if err != nil {
		return err
	}
	if h.Status != "ok" {
		return errors.Newf("remote status %q", h.Status)
	}
	return nil
}

// CheckCompatibility verifies the remote speaks a compatible API version
// and returns the version it reported
func (c *Client) CheckCompatibility(ctx context.Context) (string, error) {
	h, err := c.HealthInfo(ctx)
	if err != nil {
		return "", err
	}

	serverVer, err := semver.NewVersion(h.APIVersion)
	if err != nil {
		return h.APIVersion, errors.Wrapf(err, "remote reported invalid API version %q", h.APIVersion)
	}
	constraint, err := semver.NewConstraint(fmt.Sprintf("^%s", APIVersion))
	if err != nil {
		return h.APIVersion, errors.Wrap(err, "invalid client API version")
	}
	if !constraint.Check(serverVer) {
		return h.APIVersion, errors.WithHintf(
			errors.Newf("remote speaks API %s, this client requires %s", serverVer, constraint),
			"upgrade whichever side is older")
	}
	return h.APIVersion, nil
}
