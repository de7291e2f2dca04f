package compute

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/obsidianstack/obs/agent/internal/source"
	"github.com/obsidianstack/obs/pkg/classlist"
	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

// Option configures an Engine.
type Option func(*Engine)

// WithObserveChanges controls whether Start subscribes to source change
// events. The default is true; false classifies once per channel.
func WithObserveChanges(observe bool) Option {
	return func(e *Engine) { e.observe = observe }
}

// WithSink mirrors every class assertion onto sink as well as onto the
// engine's own class list.
func WithSink(sink stance.Sink) Option {
	return func(e *Engine) { e.extra = sink }
}

// WithStateLogging logs the fused state after every pass.
func WithStateLogging(on bool) Option {
	return func(e *Engine) { e.logState = on }
}

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine maintains the shared delivery-stance State.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	observe  bool
	logState bool
	now      func() time.Time
	extra    stance.Sink

	mu      sync.Mutex
	th      stance.Thresholds
	state   types.State
	classes *classlist.ClassList
	network source.Network
	maxer   source.DownlinkMaxer
	battery source.Battery
	cancels []func()
	stopped bool

	subMu     sync.Mutex
	subNext   int
	subs      map[int]func(types.State)
	delivered uint64
}

// New returns an Engine using th. Nothing is classified until Start.
func New(th stance.Thresholds, opts ...Option) *Engine {
	e := &Engine{
		observe: true,
		now:     time.Now,
		th:      th,
		classes: classlist.New(),
		subs:    make(map[int]func(types.State)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start runs the initial pass and wires change subscriptions.
//
// The network channel (if net is non-nil) is normalized synchronously, so
// Snapshot reflects it as soon as Start returns. A fusion pass always runs,
// even without a network source. The battery is acquired in a goroutine; an
// acquisition error leaves the battery channel uninitialized for good.
// Subscriptions are released when ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context, net source.Network, bat source.BatteryAcquirer) {
	e.mu.Lock()
	e.stopped = false
	e.network = net
	if net != nil {
		if m, ok := net.(source.DownlinkMaxer); ok {
			e.maxer = m
		}
	}
	e.mu.Unlock()

	if net != nil {
		if n, ok := net.(source.Notifier); ok && e.observe {
			e.track(n.Subscribe(e.RefreshNetwork))
		}
		e.RefreshNetwork()
	} else {
		e.recompute()
	}

	if bat != nil {
		go e.acquireBattery(ctx, bat)
	}

	go func() {
		<-ctx.Done()
		e.Stop()
	}()
}

// Stop cancels every source subscription. The last State stays readable.
// A battery acquired after Stop is discarded.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// RefreshNetwork re-reads the network source, then re-runs fusion.
// It is the network change handler and is safe to call at any time.
func (e *Engine) RefreshNetwork() {
	e.mu.Lock()
	if e.network == nil {
		e.mu.Unlock()
		return
	}
	e.applyNetworkLocked()
	snap := e.fuseLocked()
	e.mu.Unlock()

	e.notify(snap)
}

// RefreshBattery re-reads the acquired battery, then re-runs fusion.
// Before acquisition it does nothing.
func (e *Engine) RefreshBattery() {
	e.mu.Lock()
	if e.battery == nil {
		e.mu.Unlock()
		return
	}
	e.applyBatteryLocked()
	snap := e.fuseLocked()
	e.mu.Unlock()

	e.notify(snap)
}

// SetThresholds swaps the tunable thresholds and re-classifies both
// channels from their sources.
func (e *Engine) SetThresholds(th stance.Thresholds) {
	e.mu.Lock()
	e.th = th
	if e.network != nil {
		e.applyNetworkLocked()
	}
	if e.battery != nil {
		e.applyBatteryLocked()
	}
	snap := e.fuseLocked()
	e.mu.Unlock()

	e.notify(snap)
}

// SetStateLogging toggles per-pass state logging.
func (e *Engine) SetStateLogging(on bool) {
	e.mu.Lock()
	e.logState = on
	e.mu.Unlock()
}

// Thresholds returns the thresholds in use.
func (e *Engine) Thresholds() stance.Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.th
}

// Snapshot returns a copy of the current State.
func (e *Engine) Snapshot() types.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Classes returns the sorted class list matching the current State.
func (e *Engine) Classes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classes.Names()
}

// Subscribe registers fn to receive a copy of the State after every pass.
// Deliveries happen outside the engine lock; a snapshot older than one
// already delivered is dropped.
func (e *Engine) Subscribe(fn func(types.State)) (cancel func()) {
	e.subMu.Lock()
	id := e.subNext
	e.subNext++
	e.subs[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

// --- internal ---------------------------------------------------------------

func (e *Engine) acquireBattery(ctx context.Context, acq source.BatteryAcquirer) {
	b, err := acq.Acquire(ctx)
	if err != nil {
		slog.Debug("engine: battery channel unavailable", "err", err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.battery = b
	e.mu.Unlock()

	if e.observe {
		if n, ok := b.(source.LevelNotifier); ok {
			e.track(n.SubscribeLevel(e.RefreshBattery))
		}
		if n, ok := b.(source.ChargingNotifier); ok {
			e.track(n.SubscribeCharging(e.RefreshBattery))
		}
	}

	e.RefreshBattery()
}

// track records cancel for Stop, or runs it at once if Stop already ran.
func (e *Engine) track(cancel func()) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		cancel()
		return
	}
	e.cancels = append(e.cancels, cancel)
	e.mu.Unlock()
}

func (e *Engine) recompute() {
	e.mu.Lock()
	snap := e.fuseLocked()
	e.mu.Unlock()

	e.notify(snap)
}

func (e *Engine) applyNetworkLocked() {
	stance.NormalizeNetwork(e.network.Network()).ApplyTo(&e.state)

	e.state.DownlinkMax = nil
	if e.maxer != nil {
		if v := e.maxer.DownlinkMax(); !math.IsNaN(v) && !math.IsInf(v, 0) {
			e.state.DownlinkMax = &v
		}
	}

	stance.ApplyNetworkClasses(e.classes, e.state, e.th)
	if e.extra != nil {
		stance.ApplyNetworkClasses(e.extra, e.state, e.th)
	}
}

func (e *Engine) applyBatteryLocked() {
	stance.NormalizeBattery(e.battery.Battery(), e.th).ApplyTo(&e.state)

	stance.ApplyBatteryClasses(e.classes, e.state)
	if e.extra != nil {
		stance.ApplyBatteryClasses(e.extra, e.state)
	}
}

// fuseLocked recomputes the stance from the whole record, updates the
// stance classes and returns a copy for notification.
func (e *Engine) fuseLocked() types.State {
	stance.Fuse(&e.state, e.th)
	e.state.Revision++
	e.state.UpdatedAt = e.now().UTC()

	stance.ApplyStanceClasses(e.classes, e.state)
	if e.extra != nil {
		stance.ApplyStanceClasses(e.extra, e.state)
	}

	if e.logState {
		slog.Info("engine: state",
			"revision", e.state.Revision,
			"delivery_mode", e.state.DeliveryMode,
			"connection_capability", e.state.ConnectionCapability,
			"conservation_preference", e.state.ConservationPreference,
			"rtt_category", e.state.RTTCategory,
			"downlink_bucket", e.state.DownlinkBucket,
			"data_saver", e.state.DataSaver,
			"battery_low", e.state.BatteryLow,
			"battery_charging", e.state.BatteryCharging,
		)
	}
	return e.state.Clone()
}

func (e *Engine) notify(s types.State) {
	e.subMu.Lock()
	if s.Revision <= e.delivered {
		e.subMu.Unlock()
		return
	}
	e.delivered = s.Revision
	fns := make([]func(types.State), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
