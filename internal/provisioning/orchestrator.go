package provisioning

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/metrics"
	"github.com/imamik/hvplane/internal/session"
)

// Result is the outcome of a successful CreateVM.
type Result struct {
	HypervisorID string                    `json:"hypervisorId"`
	Node         string                    `json:"node"`
	NativeID     string                    `json:"nativeId"`
	Task         hypervisor.TaskHandle     `json:"task,omitempty"`
	Mode         Mode                      `json:"mode"`
	PoweredOn    bool                      `json:"poweredOn"`
	PowerTask    hypervisor.TaskHandle     `json:"powerTask,omitempty"`
	Record       *hypervisor.ProvisionedVM `json:"record,omitempty"`
	Warnings     []string                  `json:"warnings,omitempty"`
}

// Orchestrator runs the creation pipeline.
type Orchestrator struct {
	store    Store
	factory  ClientFactory
	defaults config.ProvisioningConfig
	metrics  *metrics.Metrics
	log      logr.Logger
	phases   func() []Phase
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records creation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithPhases replaces the pipeline (tests).
func WithPhases(fn func() []Phase) Option {
	return func(o *Orchestrator) {
		o.phases = fn
	}
}

// New creates an Orchestrator.
func New(store Store, factory ClientFactory, defaults config.ProvisioningConfig, log logr.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		factory:  factory,
		defaults: defaults,
		log:      log.WithName("provisioning"),
		phases:   DefaultPhases,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateVM creates a VM and returns its backend id and task handle.
// Validation errors are returned before any backend call. The client opened
// by the session phase is always released.
func (o *Orchestrator) CreateVM(ctx context.Context, spec Spec) (*Result, error) {
	observer := NewLogObserver(o.log).WithFields(map[string]string{
		"vm":         spec.Name,
		"hypervisor": spec.Hypervisor,
	})
	pctx := NewContext(ctx, spec, o.defaults, o.store, o.factory, observer)
	defer func() {
		if pctx.State.Client != nil {
			session.Release(ctx, o.log, pctx.State.Client)
		}
	}()

	err := RunPhases(pctx, o.phases())

	mode := pctx.State.Mode
	if mode == "" {
		mode = ModeClone
		if isISO(spec.Template) {
			mode = ModeISO
		}
	}
	o.metrics.RecordCreation(string(mode), err)
	if err != nil {
		return nil, err
	}

	st := pctx.State
	return &Result{
		HypervisorID: st.Hypervisor.ID,
		Node:         st.Node,
		NativeID:     st.Created.NativeID,
		Task:         st.Created.Task,
		Mode:         st.Mode,
		PoweredOn:    st.PoweredOn,
		PowerTask:    st.PowerTask,
		Record:       st.Record,
		Warnings:     st.Warnings,
	}, nil
}
