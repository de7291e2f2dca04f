package source

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/obsidianstack/obs/pkg/stance"
)

// FeedNetwork is a network source whose readings are pushed in from outside
// (the agent's PUT /api/v1/signals/network). Every Set is a change event.
type FeedNetwork struct {
	mu          sync.RWMutex
	reading     stance.NetworkReading
	downlinkMax float64
	changes     broadcaster
}

// NewFeedNetwork returns a feed that reports unknown values until the first Set.
func NewFeedNetwork() *FeedNetwork {
	return &FeedNetwork{reading: unknownNetwork(), downlinkMax: math.NaN()}
}

// Network returns the latest pushed reading.
func (f *FeedNetwork) Network() stance.NetworkReading {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.reading
}

// DownlinkMax returns the latest pushed maximum downlink, NaN if never set.
func (f *FeedNetwork) DownlinkMax() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.downlinkMax
}

// Set stores a reading and notifies subscribers. Pass NaN for an unknown
// downlinkMax.
func (f *FeedNetwork) Set(r stance.NetworkReading, downlinkMax float64) {
	f.mu.Lock()
	f.reading = r
	f.downlinkMax = downlinkMax
	f.mu.Unlock()
	f.changes.fire()
}

// Subscribe registers fn for change events.
func (f *FeedNetwork) Subscribe(fn func()) func() {
	return f.changes.subscribe(fn)
}

// FeedBattery is a battery whose readings are pushed in from outside.
// Acquire blocks until the first reading arrives, mirroring a deferred
// battery acquisition.
type FeedBattery struct {
	mu       sync.RWMutex
	reading  stance.BatteryReading
	ready    chan struct{}
	once     sync.Once
	level    broadcaster
	charging broadcaster
}

// NewFeedBattery returns a feed with no reading yet.
func NewFeedBattery() *FeedBattery {
	return &FeedBattery{ready: make(chan struct{})}
}

// Acquire waits for the first Set or for ctx to end.
func (f *FeedBattery) Acquire(ctx context.Context) (Battery, error) {
	select {
	case <-f.ready:
		return f, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

// Battery returns the latest pushed reading.
func (f *FeedBattery) Battery() stance.BatteryReading {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.reading
}

// Set stores a reading. The first Set resolves Acquire; later ones notify
// level and charging subscribers for whichever of the two changed.
func (f *FeedBattery) Set(r stance.BatteryReading) {
	f.mu.Lock()
	prev := f.reading
	f.reading = r
	f.mu.Unlock()

	first := false
	f.once.Do(func() {
		first = true
		close(f.ready)
	})
	if first {
		return
	}
	if !sameFloat(prev.Level, r.Level) {
		f.level.fire()
	}
	if prev.Charging != r.Charging {
		f.charging.fire()
	}
}

// SubscribeLevel registers fn for level changes.
func (f *FeedBattery) SubscribeLevel(fn func()) func() {
	return f.level.subscribe(fn)
}

// SubscribeCharging registers fn for charging changes.
func (f *FeedBattery) SubscribeCharging(fn func()) func() {
	return f.charging.subscribe(fn)
}
