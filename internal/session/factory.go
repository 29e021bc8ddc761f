// Package session turns persisted hypervisor records into authenticated
// clients and records the outcome of connection checks.
package session

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/metrics"
	"github.com/imamik/hvplane/internal/platform/proxmox"
	"github.com/imamik/hvplane/internal/platform/vsphere"
	"github.com/imamik/hvplane/internal/util/netutil"
)

// Conn is a client that can prove its credentials against the backend.
type Conn interface {
	hypervisor.Client
	Connect(ctx context.Context) error
}

// Builder creates an unauthenticated Conn for a record.
type Builder func(rec *hypervisor.Record) (Conn, error)

// Store is the part of the relational store the factory writes to.
type Store interface {
	GetHypervisor(ctx context.Context, id string) (*hypervisor.Record, error)
	UpdateHypervisorStatus(ctx context.Context, id string, status hypervisor.Status, subtype *hypervisor.Subtype, lastSync time.Time) error
}

// subtyper is implemented by clients that discover their subtype while
// connecting.
type subtyper interface {
	Subtype() hypervisor.Subtype
}

// Factory builds clients per hypervisor type.
type Factory struct {
	store    Store
	timeouts *config.Timeouts
	metrics  *metrics.Metrics
	log      logr.Logger
	builders map[hypervisor.Type]Builder
	now      func() time.Time
	// skipReachability disables the TCP pre-check (tests with fake builders).
	skipReachability bool
}

// Option configures a Factory.
type Option func(*Factory)

// WithBuilder replaces the builder for one hypervisor type.
func WithBuilder(t hypervisor.Type, b Builder) Option {
	return func(f *Factory) {
		f.builders[t] = b
	}
}

// WithMetrics records check failures and backend calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Factory) {
		f.metrics = m
	}
}

// WithClock replaces time.Now for lastSync stamps.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		f.now = now
	}
}

// WithoutReachabilityCheck skips the TCP dial that precedes Connect.
func WithoutReachabilityCheck() Option {
	return func(f *Factory) {
		f.skipReachability = true
	}
}

// NewFactory returns a factory with the default proxmox and vsphere builders.
func NewFactory(store Store, timeouts *config.Timeouts, log logr.Logger, opts ...Option) *Factory {
	f := &Factory{
		store:    store,
		timeouts: timeouts,
		log:      log.WithName("session"),
		builders: make(map[hypervisor.Type]Builder),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	if _, ok := f.builders[hypervisor.TypeProxmox]; !ok {
		f.builders[hypervisor.TypeProxmox] = func(rec *hypervisor.Record) (Conn, error) {
			return proxmox.NewClient(rec,
				proxmox.WithTimeouts(f.timeouts),
				proxmox.WithMetrics(f.metrics),
				proxmox.WithLogger(f.log))
		}
	}
	if _, ok := f.builders[hypervisor.TypeVSphere]; !ok {
		f.builders[hypervisor.TypeVSphere] = func(rec *hypervisor.Record) (Conn, error) {
			return vsphere.NewClient(rec,
				vsphere.WithTimeouts(f.timeouts),
				vsphere.WithMetrics(f.metrics),
				vsphere.WithLogger(f.log))
		}
	}
	return f
}

func (f *Factory) build(rec *hypervisor.Record) (Conn, error) {
	b, ok := f.builders[rec.Type]
	if !ok {
		return nil, apierr.Validation("session.build", "unsupported hypervisor type %q", rec.Type)
	}
	return b(rec)
}

// GetClient returns a client ready for calls. Proxmox clients carry their
// token on every request and are returned without a network round trip;
// vSphere clients run the authentication chain first.
//
// The caller owns the returned client and must Logout exactly once.
func (f *Factory) GetClient(ctx context.Context, rec *hypervisor.Record) (hypervisor.Client, error) {
	c, err := f.build(rec)
	if err != nil {
		return nil, err
	}
	if rec.Type == hypervisor.TypeProxmox {
		return c, nil
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect checks a stored hypervisor and writes status, lastSync and the
// discovered subtype back to the store. The check outcome is returned even
// when the write fails.
func (f *Factory) Connect(ctx context.Context, id string) (*hypervisor.Record, error) {
	rec, err := f.store.GetHypervisor(ctx, id)
	if err != nil {
		return nil, err
	}
	log := f.log.WithValues("hypervisor", rec.ID, "type", rec.Type)

	checkErr := f.check(ctx, rec)

	status := hypervisor.StatusConnected
	if checkErr != nil {
		status = hypervisor.StatusError
		f.metrics.RecordScanFailure(rec.ID)
		log.Info("connection check failed", "error", checkErr.Error())
	} else {
		log.Info("hypervisor connected", "subtype", rec.SubtypeOrEmpty())
	}

	synced := f.now().UTC()
	if err := f.store.UpdateHypervisorStatus(ctx, rec.ID, status, rec.Subtype, synced); err != nil {
		log.Error(err, "failed to persist connection status")
		if checkErr == nil {
			checkErr = err
		}
	}
	rec.Status = status
	rec.LastSync = &synced

	if checkErr != nil {
		return rec, checkErr
	}
	return rec, nil
}

func (f *Factory) check(ctx context.Context, rec *hypervisor.Record) error {
	c, err := f.build(rec)
	if err != nil {
		return err
	}

	if !f.skipReachability {
		if err := f.checkReachable(ctx, rec); err != nil {
			return err
		}
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer Release(ctx, f.log, c)

	if st, ok := c.(subtyper); ok && st.Subtype() != "" {
		subtype := st.Subtype()
		rec.Subtype = &subtype
	}
	return nil
}

func (f *Factory) checkReachable(ctx context.Context, rec *hypervisor.Record) error {
	port := proxmox.DefaultPort
	if rec.Type == hypervisor.TypeVSphere {
		port = vsphere.DefaultPort
	}
	host, port, err := netutil.SplitHostPort(rec.Host, port)
	if err != nil {
		return apierr.Validation("session.Connect", "invalid host: %v", err)
	}
	if err := netutil.CheckTCP(ctx, netutil.JoinHostPort(host, port), f.timeouts.Connect); err != nil {
		return apierr.Wrap(apierr.KindUnreachable, "session.Connect", err)
	}
	return nil
}

// Release logs a client out and logs any failure. Logout errors never change
// the outcome of the operation that used the client.
func Release(ctx context.Context, log logr.Logger, c hypervisor.Client) {
	if c == nil {
		return
	}
	if err := c.Logout(ctx); err != nil {
		log.V(1).Info("logout failed", "hypervisor", c.Record().ID, "error", err.Error())
	}
}
