package mcproxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/AlickH/MCProxy/bridgecfg"
	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Orchestrator owns zero or more running Instances, one per configured
// child, keyed by ChildConfig.ID.
type Orchestrator struct {
	hooks Hooks

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewOrchestrator returns an empty Orchestrator whose Instances dispatch
// through hooks.
func NewOrchestrator(hooks Hooks) *Orchestrator {
	return &Orchestrator{hooks: hooks, instances: make(map[string]*Instance)}
}

// Start brings up a single bridge for cfg. It is an error to start an id
// that is already running.
func (o *Orchestrator) Start(ctx context.Context, cfg bridgecfg.ChildConfig) (*Instance, error) {
	o.mu.Lock()
	if _, exists := o.instances[cfg.ID]; exists {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, cfg.ID)
	}
	inst := newInstance(cfg, newHookBus(o.hooks))
	o.instances[cfg.ID] = inst
	o.mu.Unlock()

	if err := inst.Start(ctx); err != nil {
		return inst, err
	}
	return inst, nil
}

// Stop tears down the bridge for id and removes it from the Orchestrator.
func (o *Orchestrator) Stop(id string) error {
	o.mu.Lock()
	inst, ok := o.instances[id]
	if ok {
		delete(o.instances, id)
	}
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	err := inst.Stop()
	inst.bus.stop()
	return err
}

// Get returns the running Instance for id, if any.
func (o *Orchestrator) Get(id string) (*Instance, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.instances[id]
	return inst, ok
}

// StartAll brings up one bridge per entry in cfgs concurrently, collecting
// every failure into a single error rather than aborting on the first.
func (o *Orchestrator) StartAll(ctx context.Context, cfgs []bridgecfg.ChildConfig) error {
	group, gctx := errgroup.WithContext(ctx)
	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	for _, cfg := range cfgs {
		cfg := cfg
		group.Go(func() error {
			if _, err := o.Start(gctx, cfg); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, errwrap.Wrapf(cfg.ID+": {{err}}", err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errs.ErrorOrNil()
}

// StopAll tears down every running Instance concurrently.
func (o *Orchestrator) StopAll() error {
	o.mu.Lock()
	ids := make([]string, 0, len(o.instances))
	for id := range o.instances {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	var (
		mu   sync.Mutex
		errs *multierror.Error
		wg   sync.WaitGroup
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.Stop(id); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, errwrap.Wrapf(id+": {{err}}", err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs.ErrorOrNil()
}

// Status returns a readiness snapshot for every running Instance.
func (o *Orchestrator) Status() []BridgeStatus {
	o.mu.Lock()
	insts := make([]*Instance, 0, len(o.instances))
	for _, inst := range o.instances {
		insts = append(insts, inst)
	}
	o.mu.Unlock()

	out := make([]BridgeStatus, 0, len(insts))
	for _, inst := range insts {
		out = append(out, inst.Status())
	}
	return out
}
