package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/obsidianstack/obs/agent/internal/config"
	"github.com/obsidianstack/obs/pkg/stance"
)

// ErrUnavailable reports that a signal channel cannot be acquired.
var ErrUnavailable = errors.New("source: channel unavailable")

// Network is a synchronous network signal source.
type Network interface {
	Network() stance.NetworkReading
}

// DownlinkMaxer is implemented by network sources that expose the maximum
// downlink of the underlying link. NaN means unknown.
type DownlinkMaxer interface {
	DownlinkMax() float64
}

// Notifier is implemented by network sources that emit change events.
type Notifier interface {
	Subscribe(fn func()) (cancel func())
}

// Battery is an acquired battery signal source.
type Battery interface {
	Battery() stance.BatteryReading
}

// LevelNotifier is implemented by batteries that emit level changes.
type LevelNotifier interface {
	SubscribeLevel(fn func()) (cancel func())
}

// ChargingNotifier is implemented by batteries that emit charging changes.
type ChargingNotifier interface {
	SubscribeCharging(fn func()) (cancel func())
}

// BatteryAcquirer resolves a Battery, possibly after a delay. A non-nil
// error means the battery channel never initializes.
type BatteryAcquirer interface {
	Acquire(ctx context.Context) (Battery, error)
}

// Runner is implemented by sources that need a background goroutine.
// Run blocks until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context)
}

// Primer is implemented by sources that can take a first reading before
// the engine's initial pass.
type Primer interface {
	Prime(ctx context.Context) error
}

// NewNetwork returns the network source for src, or nil for type none.
func NewNetwork(src config.Source) (Network, error) {
	switch src.Type {
	case config.SourceNone:
		return nil, nil
	case config.SourceFeed, "":
		return NewFeedNetwork(), nil
	case config.SourceStatic:
		return &Static{Net: staticNetwork(src.Static)}, nil
	case config.SourceFile:
		return NewFile(src.Path), nil
	case config.SourcePrometheus:
		p, err := NewPrometheus(src)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("source: unsupported network type %q", src.Type)
	}
}

// NewBattery returns the battery acquirer for src, or nil for type none.
func NewBattery(src config.Source) (BatteryAcquirer, error) {
	switch src.Type {
	case config.SourceNone:
		return nil, nil
	case config.SourceFeed, "":
		return NewFeedBattery(), nil
	case config.SourceStatic:
		bat := staticBattery(src.Static)
		return &Static{Bat: &bat}, nil
	case config.SourceFile:
		return NewFile(src.Path), nil
	case config.SourcePrometheus:
		p, err := NewPrometheus(src)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.SourceSysfs:
		return NewSysfs(src.Path, src.Interval), nil
	default:
		return nil, fmt.Errorf("source: unsupported battery type %q", src.Type)
	}
}

// broadcaster is a set of change callbacks. fire calls them outside the lock
// so a callback may subscribe or cancel without deadlocking.
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func (b *broadcaster) subscribe(fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func())
	}
	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster) fire() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// sameFloat treats two NaNs as equal so unknown → unknown is not a change.
func sameFloat(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

func sameNetwork(a, b stance.NetworkReading) bool {
	return a.SaveData == b.SaveData && sameFloat(a.RTT, b.RTT) && sameFloat(a.Downlink, b.Downlink)
}

// unknownNetwork is the reading of a network source that has not reported yet.
func unknownNetwork() stance.NetworkReading {
	return stance.NetworkReading{RTT: math.NaN(), Downlink: math.NaN()}
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
