package vsphere

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/util/netutil"
)

const (
	sessionPath      = "/rest/com/vmware/cis/session"
	vcenterCheckPath = "/rest/vcenter/datacenter"
	uiLoginPath      = "/ui/login"
	sessionHeader    = "vmware-api-session-id"
	apiTypeVCenter   = "VirtualCenter"
)

// StrategyName identifies how a session was obtained.
type StrategyName string

const (
	StrategyREST      StrategyName = "rest"
	StrategyUILogin   StrategyName = "ui-login"
	StrategySOAPBasic StrategyName = "soap-basic"
)

// Session is the proof of authentication produced by a Strategy.
type Session struct {
	Strategy StrategyName
	// Token is the REST session id or the UI cookie header. It is empty for
	// SOAP basic sessions, which keep sending Basic credentials.
	Token string
}

func (s *Session) apply(req *http.Request, creds hypervisor.Credentials) {
	switch s.Strategy {
	case StrategyREST:
		req.Header.Set(sessionHeader, s.Token)
	case StrategyUILogin:
		req.Header.Set("Cookie", s.Token)
	default:
		req.SetBasicAuth(creds.Username, creds.Secret)
	}
}

// Strategy is one step of the authentication chain. It returns the session
// and, when it can tell, the endpoint subtype ("" when unknown).
type Strategy interface {
	Name() StrategyName
	Authenticate(ctx context.Context, c *Client) (*Session, hypervisor.Subtype, error)
}

// SubtypeClassifier decides vcenter vs esxi when a strategy could not.
type SubtypeClassifier func(ctx context.Context) (hypervisor.Subtype, error)

// DefaultStrategies returns TryRestApi → TryUiLogin → TrySoapBasic.
func DefaultStrategies() []Strategy {
	return []Strategy{RESTStrategy{}, UILoginStrategy{}, SOAPBasicStrategy{}}
}

// Connect authenticates with the first strategy that succeeds and classifies
// the endpoint. When every strategy fails the error is KindAuth and wraps each
// strategy failure.
func (c *Client) Connect(ctx context.Context) error {
	var errs []error

	for _, s := range c.strategies {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Connect)
		sess, subtype, err := s.Authenticate(sctx, c)
		cancel()
		if err != nil {
			c.log.V(1).Info("authentication strategy failed", "strategy", s.Name(), "error", err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		c.session = sess
		if subtype == "" {
			subtype = c.classifySubtype(ctx)
		}
		c.subtype = subtype
		c.log.Info("vsphere session established", "strategy", s.Name(), "subtype", subtype)
		return nil
	}

	return &apierr.Error{
		Kind:    apierr.KindAuth,
		Op:      "vsphere.Connect",
		Message: "all authentication strategies failed",
		Err:     errors.Join(errs...),
	}
}

func (c *Client) classifySubtype(ctx context.Context) hypervisor.Subtype {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Connect)
	defer cancel()

	subtype, err := c.classify(cctx)
	if err != nil {
		c.log.Error(err, "could not read endpoint type, assuming standalone host")
		return hypervisor.SubtypeESXi
	}
	return subtype
}

// RESTStrategy opens a CIS REST session with Basic credentials, then checks a
// vCenter-only endpoint: success means vcenter, failure means esxi.
type RESTStrategy struct{}

// Name implements Strategy.
func (RESTStrategy) Name() StrategyName { return StrategyREST }

// Authenticate implements Strategy.
func (RESTStrategy) Authenticate(ctx context.Context, c *Client) (*Session, hypervisor.Subtype, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionPath, nil)
	if err != nil {
		return nil, "", err
	}
	req.SetBasicAuth(c.record.Credentials.Username, c.record.Credentials.Secret)
	req.Header.Set("Accept", "application/json")

	var token string
	if err := c.do(c.httpClient, req, &token); err != nil {
		return nil, "", err
	}
	if token == "" {
		return nil, "", errors.New("no session token in response")
	}
	sess := &Session{Strategy: StrategyREST, Token: token}

	check, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+vcenterCheckPath, nil)
	if err != nil {
		return nil, "", err
	}
	sess.apply(check, c.record.Credentials)
	check.Header.Set("Accept", "application/json")
	if err := c.do(c.httpClient, check, nil); err != nil {
		c.log.V(1).Info("vcenter check failed", "error", err.Error())
		return sess, hypervisor.SubtypeESXi, nil
	}
	return sess, hypervisor.SubtypeVCenter, nil
}

// UILoginStrategy posts the web-UI login form without following redirects.
// A redirect that sets a cookie proves the session.
type UILoginStrategy struct{}

// Name implements Strategy.
func (UILoginStrategy) Name() StrategyName { return StrategyUILogin }

// Authenticate implements Strategy.
func (UILoginStrategy) Authenticate(ctx context.Context, c *Client) (*Session, hypervisor.Subtype, error) {
	form := url.Values{}
	form.Set("username", c.record.Credentials.Username)
	form.Set("password", c.record.Credentials.Secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uiLoginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := netutil.WithoutRedirects(c.httpClient).Do(req)
	if err != nil {
		return nil, "", err
	}
	_ = resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return nil, "", &APIError{Status: resp.StatusCode, Message: "login did not redirect"}
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, "", errors.New("login redirect carried no session cookie")
	}

	pairs := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	return &Session{Strategy: StrategyUILogin, Token: strings.Join(pairs, "; ")}, "", nil
}

// SOAPBasicStrategy checks the legacy SOAP endpoint with Basic credentials.
// 200 is authenticated, 401 means the endpoint exists but rejected the
// credentials, anything else is unreachable.
type SOAPBasicStrategy struct{}

// Name implements Strategy.
func (SOAPBasicStrategy) Name() StrategyName { return StrategySOAPBasic }

// Authenticate implements Strategy.
func (SOAPBasicStrategy) Authenticate(ctx context.Context, c *Client) (*Session, hypervisor.Subtype, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.soapURL.String(), nil)
	if err != nil {
		return nil, "", err
	}
	req.SetBasicAuth(c.record.Credentials.Username, c.record.Credentials.Secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", apierr.Wrap(apierr.KindUnreachable, "soap basic", err)
	}
	_ = resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return &Session{Strategy: StrategySOAPBasic}, "", nil
	case http.StatusUnauthorized:
		return nil, "", apierr.Wrap(apierr.KindAuth, "soap basic",
			&APIError{Status: resp.StatusCode, Message: "endpoint exists but credentials were rejected"})
	default:
		return nil, "", apierr.Wrap(apierr.KindUnreachable, "soap basic",
			&APIError{Status: resp.StatusCode, Message: "unexpected status from sdk endpoint"})
	}
}

// ClassifyAPIType reads ServiceContent.About.ApiType, which needs no login:
// "VirtualCenter" is a vcenter, anything else a standalone host.
func ClassifyAPIType(ctx context.Context, u *url.URL, insecure bool) (hypervisor.Subtype, error) {
	vc, err := vim25.NewClient(ctx, soap.NewClient(u, insecure))
	if err != nil {
		return "", fmt.Errorf("read service content: %w", err)
	}
	if vc.ServiceContent.About.ApiType == apiTypeVCenter {
		return hypervisor.SubtypeVCenter, nil
	}
	return hypervisor.SubtypeESXi, nil
}
