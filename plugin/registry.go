package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/reconcile"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are cached per interface when a plugin registers.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit              []OnInit
	onShutdown          []OnShutdown
	onFacilityCreated   []OnFacilityCreated
	onEnergyStored      []OnEnergyStored
	onEnergyConsumed    []OnEnergyConsumed
	onLedgerReconciled  []OnLedgerReconciled
	onOperationRejected []OnOperationRejected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets how long a single hook may run before it is abandoned.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnFacilityCreated); ok {
		r.onFacilityCreated = append(r.onFacilityCreated, v)
		hooks = append(hooks, "OnFacilityCreated")
	}
	if v, ok := p.(OnEnergyStored); ok {
		r.onEnergyStored = append(r.onEnergyStored, v)
		hooks = append(hooks, "OnEnergyStored")
	}
	if v, ok := p.(OnEnergyConsumed); ok {
		r.onEnergyConsumed = append(r.onEnergyConsumed, v)
		hooks = append(hooks, "OnEnergyConsumed")
	}
	if v, ok := p.(OnLedgerReconciled); ok {
		r.onLedgerReconciled = append(r.onLedgerReconciled, v)
		hooks = append(hooks, "OnLedgerReconciled")
	}
	if v, ok := p.(OnOperationRejected); ok {
		r.onOperationRejected = append(r.onOperationRejected, v)
		hooks = append(hooks, "OnOperationRejected")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, bank interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, bank)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitFacilityCreated emits a facility created event.
func (r *Registry) EmitFacilityCreated(ctx context.Context, f *facility.Facility) {
	r.mu.RLock()
	plugins := r.onFacilityCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnFacilityCreated", func() error {
			return p.OnFacilityCreated(ctx, f.Clone())
		})
	}
}

// EmitEnergyStored emits a deposit event.
func (r *Registry) EmitEnergyStored(ctx context.Context, l *producer.Ledger, amount, rate uint64) {
	r.mu.RLock()
	plugins := r.onEnergyStored
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnEnergyStored", func() error {
			return p.OnEnergyStored(ctx, l.Clone(), amount, rate)
		})
	}
}

// EmitEnergyConsumed emits a withdrawal event.
func (r *Registry) EmitEnergyConsumed(ctx context.Context, l *producer.Ledger, amount uint64) {
	r.mu.RLock()
	plugins := r.onEnergyConsumed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnEnergyConsumed", func() error {
			return p.OnEnergyConsumed(ctx, l.Clone(), amount)
		})
	}
}

// EmitLedgerReconciled emits a reconciliation event.
func (r *Registry) EmitLedgerReconciled(ctx context.Context, l *producer.Ledger, res reconcile.Result) {
	r.mu.RLock()
	plugins := r.onLedgerReconciled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnLedgerReconciled", func() error {
			return p.OnLedgerReconciled(ctx, l.Clone(), res)
		})
	}
}

// EmitOperationRejected emits a rejection event.
func (r *Registry) EmitOperationRejected(ctx context.Context, rej Rejection) {
	r.mu.RLock()
	plugins := r.onOperationRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnOperationRejected", func() error {
			return p.OnOperationRejected(ctx, rej)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, name, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, name, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", name,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins never block a ledger operation for longer than r.timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
