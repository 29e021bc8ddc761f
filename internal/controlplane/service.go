// Package controlplane wires the store, session factory, locator,
// provisioning orchestrator, action dispatcher and capacity aggregator into
// one Service.
package controlplane

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/capacity"
	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/dispatch"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/locator"
	"github.com/imamik/hvplane/internal/metrics"
	"github.com/imamik/hvplane/internal/provisioning"
	"github.com/imamik/hvplane/internal/session"
	"github.com/imamik/hvplane/internal/store"
	"github.com/imamik/hvplane/internal/util/async"
)

// Service is the control plane surface.
type Service struct {
	store      *store.Store
	factory    *session.Factory
	locator    *locator.Locator
	orch       *provisioning.Orchestrator
	dispatcher *dispatch.Dispatcher
	aggregator *capacity.Aggregator
	normalizer *apierr.Normalizer
	metrics    *metrics.Metrics
	log        logr.Logger
}

// Option configures a Service.
type Option func(*options)

type options struct {
	sessionOpts []session.Option
}

// WithSessionOptions passes options to the session factory.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) {
		o.sessionOpts = append(o.sessionOpts, opts...)
	}
}

// New opens the store and builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, timeouts *config.Timeouts, m *metrics.Metrics, log logr.Logger, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(ctx, cfg.Store, timeouts, log.WithName("store"))
	if err != nil {
		return nil, err
	}

	factory := session.NewFactory(st, timeouts, log,
		append([]session.Option{session.WithMetrics(m)}, o.sessionOpts...)...)
	loc := locator.New(st, factory, log,
		locator.WithSequentialScan(cfg.Locator.Sequential),
		locator.WithCache(cfg.Locator.CacheTTL, cfg.Locator.CacheSize),
		locator.WithMetrics(m))

	return &Service{
		store:      st,
		factory:    factory,
		locator:    loc,
		orch:       provisioning.New(st, factory, cfg.Provisioning, log, provisioning.WithMetrics(m)),
		dispatcher: dispatch.New(loc, log),
		aggregator: capacity.New(st, factory, m, log),
		normalizer: apierr.NewNormalizer(cfg.Environment),
		metrics:    m,
		log:        log,
	}, nil
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}

// NormalizeError converts any error returned by the Service into the
// user-facing triple.
func (s *Service) NormalizeError(err error) apierr.Envelope {
	return s.normalizer.Normalize(err)
}

// GetClient opens a client for a stored hypervisor. The caller must Logout.
func (s *Service) GetClient(ctx context.Context, hypervisorID string) (hypervisor.Client, error) {
	rec, err := s.store.ResolveHypervisor(ctx, hypervisorID)
	if err != nil {
		return nil, err
	}
	return s.factory.GetClient(ctx, rec)
}

// Connect checks a hypervisor and stores status, lastSync and subtype.
func (s *Service) Connect(ctx context.Context, hypervisorID string) (*hypervisor.Record, error) {
	rec, err := s.store.ResolveHypervisor(ctx, hypervisorID)
	if err != nil {
		return nil, err
	}
	return s.factory.Connect(ctx, rec.ID)
}

// ConnectAll checks every stored hypervisor concurrently. Records are
// returned in listing order with their new status; failed checks are joined
// into the error, prefixed with the record name.
func (s *Service) ConnectAll(ctx context.Context) ([]*hypervisor.Record, error) {
	recs, err := s.store.ListHypervisors(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*hypervisor.Record, len(recs))
	tasks := make([]async.Task, len(recs))
	for i, rec := range recs {
		out[i] = rec
		tasks[i] = async.Task{
			Name: rec.Name,
			Func: func(ctx context.Context) error {
				checked, err := s.factory.Connect(ctx, rec.ID)
				if checked != nil {
					out[i] = checked
				}
				return err
			},
		}
	}
	return out, async.RunParallel(ctx, tasks)
}

// LocateVM finds a VM. The caller must Logout the returned client.
func (s *Service) LocateVM(ctx context.Context, vmID string) (*locator.Location, error) {
	return s.locator.LocateVM(ctx, vmID)
}

// VMDetails locates a VM and reads its configuration and live usage. A
// VM that vanished between the lookup and the read drops its cached
// location.
func (s *Service) VMDetails(ctx context.Context, vmID string) (*hypervisor.VMDetails, error) {
	loc, err := s.locator.LocateVM(ctx, vmID)
	if err != nil {
		return nil, err
	}
	defer session.Release(ctx, s.log, loc.Client)

	d, err := loc.Client.VMDetails(ctx, loc.Identity.Node, loc.Identity.NativeID)
	if err != nil {
		if apierr.IsNotFound(err) {
			s.locator.Invalidate(vmID)
		}
		return nil, err
	}
	d.Identity = loc.Identity
	if d.Name == "" {
		d.Name = loc.VM.Name
	}
	return d, nil
}

// CreateVM provisions a VM.
func (s *Service) CreateVM(ctx context.Context, spec provisioning.Spec) (*provisioning.Result, error) {
	return s.orch.CreateVM(ctx, spec)
}

// PerformAction runs a power action on a VM.
func (s *Service) PerformAction(ctx context.Context, vmID, action string) (*dispatch.Outcome, error) {
	return s.dispatcher.PerformAction(ctx, vmID, action)
}

// AggregateCapacity reports node capacity and plan estimates.
func (s *Service) AggregateCapacity(ctx context.Context, hypervisorID string) (*capacity.Report, error) {
	rec, err := s.store.ResolveHypervisor(ctx, hypervisorID)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(ctx, rec.ID)
}

// ListTemplates returns clonable templates and ISO images of a hypervisor.
func (s *Service) ListTemplates(ctx context.Context, hypervisorID string) ([]hypervisor.Template, error) {
	c, err := s.GetClient(ctx, hypervisorID)
	if err != nil {
		return nil, err
	}
	defer session.Release(ctx, s.log, c)
	return c.ListTemplates(ctx)
}
