// Package vsphere implements hypervisor.Client for vCenter and standalone
// ESXi endpoints.
//
// Authentication walks an ordered strategy list (REST session, web-UI login,
// SOAP basic). Generic calls go to the REST API with whatever session the
// winning strategy produced; inventory and standalone-host operations use a
// lazily opened govmomi SOAP session owned by the same client.
package vsphere

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
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/vmware/govmomi/vim25"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/metrics"
	"github.com/imamik/hvplane/internal/util/netutil"
)

// DefaultPort is the HTTPS port used when the record has none.
const DefaultPort = 443

const backend = string(hypervisor.TypeVSphere)

// Client talks to one vSphere endpoint. Create it with NewClient and
// authenticate it with Connect before use.
type Client struct {
	record     *hypervisor.Record
	baseURL    string
	soapURL    *url.URL
	httpClient *http.Client
	timeouts   *config.Timeouts
	metrics    *metrics.Metrics
	log        logr.Logger

	strategies []Strategy
	classify   SubtypeClassifier

	session *Session
	subtype hypervisor.Subtype

	vimMu  sync.Mutex
	vim    *vim25.Client
	logout func(context.Context) error
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

// WithBaseURL overrides the REST base URL derived from the record host.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithSOAPURL overrides the SOAP endpoint used by govmomi.
func WithSOAPURL(u *url.URL) ClientOption {
	return func(c *Client) {
		cp := *u
		cp.User = nil
		c.soapURL = &cp
	}
}

// WithStrategies replaces the authentication chain.
func WithStrategies(s ...Strategy) ClientOption {
	return func(c *Client) {
		c.strategies = s
	}
}

// WithSubtypeClassifier replaces the SOAP ApiType lookup used after the
// fallback strategies.
func WithSubtypeClassifier(fn SubtypeClassifier) ClientOption {
	return func(c *Client) {
		c.classify = fn
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

// NewClient prepares an unauthenticated client for a vSphere record.
func NewClient(record *hypervisor.Record, opts ...ClientOption) (*Client, error) {
	if record.Credentials.Username == "" || record.Credentials.Secret == "" {
		return nil, apierr.Validation("vsphere.NewClient", "username and secret are required")
	}

	host, port, err := netutil.SplitHostPort(record.Host, DefaultPort)
	if err != nil {
		return nil, apierr.Validation("vsphere.NewClient", "invalid host: %v", err)
	}

	c := &Client{
		record:     record,
		baseURL:    "https://" + netutil.JoinHostPort(host, port),
		httpClient: netutil.NewHTTPClient(record.InsecureTLS),
		timeouts:   config.LoadTimeouts(),
		log:        logr.Discard(),
		strategies: DefaultStrategies(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.soapURL == nil {
		u, err := url.Parse(c.baseURL + "/sdk")
		if err != nil {
			return nil, apierr.Validation("vsphere.NewClient", "invalid sdk url: %v", err)
		}
		c.soapURL = u
	}
	if c.classify == nil {
		c.classify = func(ctx context.Context) (hypervisor.Subtype, error) {
			return ClassifyAPIType(ctx, c.soapURL, c.record.InsecureTLS)
		}
	}
	c.log = c.log.WithValues("hypervisor", record.ID, "backend", backend)
	return c, nil
}

// Record returns the hypervisor record the client is bound to.
func (c *Client) Record() *hypervisor.Record {
	return c.record
}

// Subtype returns the classification made by Connect.
func (c *Client) Subtype() hypervisor.Subtype {
	return c.subtype
}

// Session returns the active session, or nil before Connect.
func (c *Client) Session() *Session {
	return c.session
}

// Get issues a GET and decodes the REST "value" member into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, c.timeouts.Read, http.MethodGet, path, nil, out)
}

// Post issues a JSON POST.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, c.timeouts.Mutate, http.MethodPost, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, c.timeouts.Mutate, http.MethodDelete, path, nil, out)
}

// Logout releases the REST session and the SOAP session, if any. It is safe
// to call on a client that never connected.
func (c *Client) Logout(ctx context.Context) error {
	var errs []error

	c.vimMu.Lock()
	if c.logout != nil {
		if err := c.logout(ctx); err != nil {
			errs = append(errs, fmt.Errorf("soap logout: %w", err))
		}
		c.logout = nil
		c.vim = nil
	}
	c.vimMu.Unlock()

	if c.session != nil && c.session.Strategy == StrategyREST {
		if err := c.Delete(ctx, sessionPath, nil); err != nil {
			errs = append(errs, fmt.Errorf("rest logout: %w", err))
		}
	}
	c.session = nil

	return errors.Join(errs...)
}

// APIError is a non-2xx REST answer.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("vsphere API error (status %d)", e.Status)
	if e.Type != "" {
		msg += " " + e.Type
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// StatusCode implements apierr.StatusCoder.
func (e *APIError) StatusCode() int {
	return e.Status
}

type restError struct {
	Type  string `json:"type"`
	Value struct {
		Messages []struct {
			DefaultMessage string `json:"default_message"`
		} `json:"messages"`
	} `json:"value"`
}

func (c *Client) call(ctx context.Context, timeout time.Duration, method, path string, body, out any) (err error) {
	op := method + " " + routeOf(path)
	start := time.Now()
	defer func() { c.metrics.ObserveBackendCall(backend, op, start, err) }()

	if c.session == nil {
		return apierr.New(apierr.KindAuth, op, "client is not connected")
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return apierr.Wrap(apierr.KindValidation, op, err)
	}
	c.session.apply(req, c.record.Credentials)

	if err := c.do(c.httpClient, req, out); err != nil {
		return classify(op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var re restError
		if json.Unmarshal(data, &re) == nil {
			apiErr.Type = re.Type
			if len(re.Value.Messages) > 0 {
				apiErr.Message = re.Value.Messages[0].DefaultMessage
			}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var wrapped struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Value) > 0 {
		data = wrapped.Value
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w (status %d)", err, resp.StatusCode)
	}
	return nil
}

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

// routeOf strips ids and queries from a path so metric labels stay bounded.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "vm", "host", "datastore":
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
