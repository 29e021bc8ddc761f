// Package locator finds which connected hypervisor hosts a VM.
//
// Checks may run in parallel, but the winner is always the match with the
// lowest listing index, so a scan returns what a sequential first-match walk
// over the store would return.
package locator

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/cache"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/metrics"
	"github.com/imamik/hvplane/internal/session"
	"github.com/imamik/hvplane/internal/util/async"
)

// Lookup outcomes recorded in metrics.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeCached   = "cached"
)

// Store lists the hypervisors a scan may visit.
type Store interface {
	GetHypervisor(ctx context.Context, id string) (*hypervisor.Record, error)
	ListConnectedHypervisors(ctx context.Context) ([]*hypervisor.Record, error)
}

// ClientFactory opens clients for records.
type ClientFactory interface {
	GetClient(ctx context.Context, rec *hypervisor.Record) (hypervisor.Client, error)
}

// Location is a located VM and the open client of its hypervisor. The
// caller must Logout the client.
type Location struct {
	Identity   hypervisor.Identity
	Hypervisor *hypervisor.Record
	VM         hypervisor.VM
	Client     hypervisor.Client
}

type cached struct {
	hypervisorID string
	node         string
}

// Locator resolves VM ids to hypervisors.
type Locator struct {
	store      Store
	factory    ClientFactory
	metrics    *metrics.Metrics
	log        logr.Logger
	sequential bool

	cache    *cache.LRUExpireCache
	cacheTTL time.Duration
}

// Option configures a Locator.
type Option func(*Locator)

// WithSequentialScan checks one hypervisor at a time.
func WithSequentialScan(sequential bool) Option {
	return func(l *Locator) {
		l.sequential = sequential
	}
}

// WithCache remembers locations for ttl. A ttl of zero disables the cache.
func WithCache(ttl time.Duration, size int) Option {
	return func(l *Locator) {
		if ttl <= 0 {
			return
		}
		if size <= 0 {
			size = 1024
		}
		l.cache = cache.NewLRUExpireCache(size)
		l.cacheTTL = ttl
	}
}

// WithMetrics records lookup outcomes and swallowed check failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Locator) {
		l.metrics = m
	}
}

// New creates a Locator.
func New(store Store, factory ClientFactory, log logr.Logger, opts ...Option) *Locator {
	l := &Locator{
		store:   store,
		factory: factory,
		log:     log.WithName("locator"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LocateVM returns the first connected hypervisor, in listing order, whose
// VM listing contains vmID. Unreachable or failing hypervisors are logged
// and skipped; NotFound is returned only after every check finished.
func (l *Locator) LocateVM(ctx context.Context, vmID string) (*Location, error) {
	if vmID == "" {
		return nil, apierr.Validation("locator.LocateVM", "vm id is required")
	}

	if loc := l.fromCache(ctx, vmID); loc != nil {
		l.metrics.RecordLocate(OutcomeCached)
		return loc, nil
	}

	recs, err := l.store.ListConnectedHypervisors(ctx)
	if err != nil {
		return nil, err
	}

	var loc *Location
	if l.sequential {
		loc = l.scanSequential(ctx, recs, vmID)
	} else {
		loc = l.scanParallel(ctx, recs, vmID)
	}

	if loc == nil {
		l.metrics.RecordLocate(OutcomeNotFound)
		return nil, apierr.NotFound("locator.LocateVM", "VM %s not found on any connected hypervisor", vmID)
	}

	l.metrics.RecordLocate(OutcomeFound)
	if l.cache != nil {
		l.cache.Add(vmID, cached{hypervisorID: loc.Hypervisor.ID, node: loc.Identity.Node}, l.cacheTTL)
	}
	return loc, nil
}

// Invalidate drops a cached location.
func (l *Locator) Invalidate(vmID string) {
	if l.cache != nil {
		l.cache.Remove(vmID)
	}
}

func (l *Locator) scanSequential(ctx context.Context, recs []*hypervisor.Record, vmID string) *Location {
	for _, rec := range recs {
		loc, err := l.search(ctx, rec, vmID)
		if err != nil {
			l.searchFailed(rec, err)
			continue
		}
		if loc != nil {
			return loc
		}
	}
	return nil
}

func (l *Locator) scanParallel(ctx context.Context, recs []*hypervisor.Record, vmID string) *Location {
	tasks := make([]async.Func[*Location], 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, async.Func[*Location]{
			Name: rec.ID,
			Func: func(ctx context.Context) (*Location, error) {
				return l.search(ctx, rec, vmID)
			},
		})
	}

	var winner *Location
	for i, res := range async.Collect(ctx, tasks) {
		if res.Err != nil {
			l.searchFailed(recs[i], res.Err)
			continue
		}
		if res.Value == nil {
			continue
		}
		if winner == nil {
			winner = res.Value
			continue
		}
		// Duplicate id on a later hypervisor.
		l.log.V(1).Info("VM id also present on another hypervisor", "vm", vmID, "hypervisor", recs[i].ID, "winner", winner.Hypervisor.ID)
		session.Release(ctx, l.log, res.Value.Client)
	}
	return winner
}

// search lists the VMs of one hypervisor. The client is released unless it is
// returned in a Location.
func (l *Locator) search(ctx context.Context, rec *hypervisor.Record, vmID string) (*Location, error) {
	c, err := l.factory.GetClient(ctx, rec)
	if err != nil {
		return nil, err
	}

	vms, err := c.ListVMs(ctx)
	if err != nil {
		session.Release(ctx, l.log, c)
		return nil, err
	}

	for _, vm := range vms {
		if vm.NativeID == vmID {
			return &Location{
				Identity: hypervisor.Identity{
					NativeID:     vm.NativeID,
					HypervisorID: rec.ID,
					Node:         vm.Node,
				},
				Hypervisor: rec,
				VM:         vm,
				Client:     c,
			}, nil
		}
	}

	session.Release(ctx, l.log, c)
	return nil, nil
}

func (l *Locator) searchFailed(rec *hypervisor.Record, err error) {
	l.metrics.RecordScanFailure(rec.ID)
	l.log.Info("hypervisor check failed, skipping", "hypervisor", rec.ID, "host", rec.Host, "error", err.Error())
}

// fromCache re-verifies a cached location with one listing of the cached
// hypervisor. A stale entry is dropped and the caller falls back to a scan.
func (l *Locator) fromCache(ctx context.Context, vmID string) *Location {
	if l.cache == nil {
		return nil
	}
	v, ok := l.cache.Get(vmID)
	if !ok {
		return nil
	}
	entry := v.(cached)

	rec, err := l.store.GetHypervisor(ctx, entry.hypervisorID)
	if err != nil || rec.Status != hypervisor.StatusConnected {
		l.cache.Remove(vmID)
		return nil
	}

	loc, err := l.search(ctx, rec, vmID)
	if err != nil || loc == nil {
		l.cache.Remove(vmID)
		return nil
	}
	return loc
}
