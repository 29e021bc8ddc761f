// Package proxmox implements hypervisor.Client for Proxmox VE clusters using
// the token-authenticated REST API.
package proxmox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/metrics"
	"github.com/imamik/hvplane/internal/util/netutil"
)

// DefaultPort is the Proxmox API port used when the record has none.
const DefaultPort = 8006

const apiPrefix = "/api2/json"

// Client is a stateless Proxmox API client. The token is sent on every call;
// there is no session to expire.
type Client struct {
	record     *hypervisor.Record
	baseURL    string
	httpClient *http.Client
	timeouts   *config.Timeouts
	metrics    *metrics.Metrics
	log        logr.Logger
}

var _ hypervisor.Client = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the per-record HTTP client (tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the URL derived from the record host (tests).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/") + apiPrefix
	}
}

// WithTimeouts sets per-call timeouts.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *Client) {
		c.timeouts = t
	}
}

// WithMetrics records every call.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient builds a client for a Proxmox record. Only token credentials are
// supported.
func NewClient(record *hypervisor.Record, opts ...ClientOption) (*Client, error) {
	if record.Credentials.Kind != hypervisor.CredentialToken {
		return nil, apierr.Validation("proxmox.NewClient", "proxmox requires token credentials, got %q", record.Credentials.Kind)
	}
	if record.Credentials.Username == "" || record.Credentials.TokenName == "" || record.Credentials.Secret == "" {
		return nil, apierr.Validation("proxmox.NewClient", "token credentials need username, tokenName and secret")
	}

	host, port, err := netutil.SplitHostPort(record.Host, DefaultPort)
	if err != nil {
		return nil, apierr.Validation("proxmox.NewClient", "invalid host: %v", err)
	}

	c := &Client{
		record:     record,
		baseURL:    "https://" + netutil.JoinHostPort(host, port) + apiPrefix,
		httpClient: netutil.NewHTTPClient(record.InsecureTLS),
		timeouts:   config.LoadTimeouts(),
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithValues("hypervisor", record.ID, "backend", hypervisor.TypeProxmox)
	return c, nil
}

// Record returns the hypervisor record the client is bound to.
func (c *Client) Record() *hypervisor.Record {
	return c.record
}

// Get issues a GET and decodes the "data" member into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, c.timeouts.Read, http.MethodGet, path, nil, out)
}

// Post issues a form-encoded POST. body may be nil, url.Values or
// map[string]string.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, c.timeouts.Mutate, http.MethodPost, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, c.timeouts.Mutate, http.MethodDelete, path, nil, out)
}

// Logout is a no-op: token authentication holds no server-side session.
func (c *Client) Logout(context.Context) error {
	return nil
}

// Connect verifies the token. Proxmox keeps no session, so this is Ping.
func (c *Client) Connect(ctx context.Context) error {
	return c.Ping(ctx)
}

// Ping verifies reachability and credentials with GET /version.
func (c *Client) Ping(ctx context.Context) error {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, c.timeouts.Connect, http.MethodGet, "/version", nil, &v); err != nil {
		return err
	}
	c.log.V(1).Info("proxmox reachable", "version", v.Version)
	return nil
}

// APIError is a non-2xx answer from the Proxmox API. The status is passed
// through unchanged to the normalizer.
type APIError struct {
	Status  int
	Message string
	// Errors holds per-parameter messages from the envelope.
	Errors map[string]string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("proxmox API error (status %d)", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	for _, k := range slices.Sorted(maps.Keys(e.Errors)) {
		msg += fmt.Sprintf("; %s: %s", k, strings.TrimSpace(e.Errors[k]))
	}
	return msg
}

// StatusCode implements apierr.StatusCoder.
func (e *APIError) StatusCode() int {
	return e.Status
}

type envelope struct {
	Data   json.RawMessage   `json:"data"`
	Errors map[string]string `json:"errors"`
}

func (c *Client) call(ctx context.Context, timeout time.Duration, method, path string, body, out any) (err error) {
	op := method + " " + routeOf(path)
	start := time.Now()
	defer func() { c.metrics.ObserveBackendCall(string(hypervisor.TypeProxmox), op, start, err) }()

	// In-flight calls run to completion or timeout even if the caller goes away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return apierr.Wrap(apierr.KindValidation, op, err)
	}

	if err := c.do(req, out); err != nil {
		return classify(op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	contentType := ""

	switch b := body.(type) {
	case nil:
	case url.Values:
		reader = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	case map[string]string:
		form := url.Values{}
		for k, v := range b {
			form.Set(k, v)
		}
		reader = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	creds := c.record.Credentials
	req.Header.Set("Authorization", "PVEAPIToken="+creds.TokenID()+"="+creds.Secret)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(body) > 0 {
		// Error answers are not always JSON; keep the status either way.
		_ = json.Unmarshal(body, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Proxmox puts the human reason in the status line.
		reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
		return &APIError{Status: resp.StatusCode, Message: reason, Errors: env.Errors}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse response: %w (status %d)", err, resp.StatusCode)
	}
	return nil
}

// classify maps transport and API failures to the error taxonomy.
func classify(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apierr.Wrap(apierr.KindAuth, op, err)
		case http.StatusNotFound:
			return apierr.Wrap(apierr.KindNotFound, op, err)
		default:
			return apierr.Wrap(apierr.KindRejected, op, err)
		}
	}
	return apierr.Wrap(apierr.KindUnreachable, op, err)
}

// routeOf strips ids from a path so metric labels stay bounded.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "nodes", "qemu", "storage":
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
