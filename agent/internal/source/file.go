package source

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/obs/pkg/stance"
)

// fileDoc is the YAML layout read by File. Absent numbers are unknown;
// an absent battery section makes the battery channel unavailable.
//
//	network:
//	  save_data: false
//	  rtt: 40
//	  downlink: 9.4
//	  downlink_max: 10
//	battery:
//	  level: 0.9
//	  charging: true
type fileDoc struct {
	Network *struct {
		SaveData    bool     `yaml:"save_data"`
		RTT         *float64 `yaml:"rtt"`
		Downlink    *float64 `yaml:"downlink"`
		DownlinkMax *float64 `yaml:"downlink_max"`
	} `yaml:"network"`
	Battery *struct {
		Level    *float64 `yaml:"level"`
		Charging bool     `yaml:"charging"`
	} `yaml:"battery"`
}

// File reads signals from a YAML document and, while Run is active,
// re-reads it whenever it changes on disk.
type File struct {
	path string

	mu          sync.RWMutex
	net         stance.NetworkReading
	downlinkMax float64
	bat         *stance.BatteryReading

	changes  broadcaster
	level    broadcaster
	charging broadcaster
}

// NewFile returns a File source for path. Call Prime (or Run) to read it.
func NewFile(path string) *File {
	return &File{path: path, net: unknownNetwork(), downlinkMax: math.NaN()}
}

// Prime reads the document once without notifying subscribers.
func (f *File) Prime(context.Context) error {
	doc, err := f.read()
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.net, f.downlinkMax, f.bat = doc.network(), doc.downlinkMax(), doc.battery()
	f.mu.Unlock()
	return nil
}

// Network returns the last network reading.
func (f *File) Network() stance.NetworkReading {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.net
}

// DownlinkMax returns the last downlink_max, NaN when absent.
func (f *File) DownlinkMax() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.downlinkMax
}

// Subscribe registers fn for network changes.
func (f *File) Subscribe(fn func()) func() { return f.changes.subscribe(fn) }

// Acquire succeeds when the document has a battery section.
func (f *File) Acquire(context.Context) (Battery, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.bat == nil {
		return nil, fmt.Errorf("%w: %s has no battery section", ErrUnavailable, f.path)
	}
	return f, nil
}

// Battery returns the last battery reading.
func (f *File) Battery() stance.BatteryReading {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.bat == nil {
		return stance.BatteryReading{Level: math.NaN()}
	}
	return *f.bat
}

// SubscribeLevel registers fn for battery level changes.
func (f *File) SubscribeLevel(fn func()) func() { return f.level.subscribe(fn) }

// SubscribeCharging registers fn for charging changes.
func (f *File) SubscribeCharging(fn func()) func() { return f.charging.subscribe(fn) }

// Run watches the document's directory and reloads on write or create.
// A document that fails to parse keeps the previous readings.
func (f *File) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("source: file watcher failed", "path", f.path, "err", err)
		return
	}
	defer watcher.Close()

	abs, err := filepath.Abs(f.path)
	if err != nil {
		slog.Error("source: file path", "path", f.path, "err", err)
		return
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		slog.Error("source: file watch", "path", abs, "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			f.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("source: file watcher error", "path", abs, "err", err)
		}
	}
}

// reload re-reads the document and fires the callbacks of whatever changed.
func (f *File) reload() {
	doc, err := f.read()
	if err != nil {
		slog.Warn("source: file reload failed, keeping previous readings", "path", f.path, "err", err)
		return
	}

	net, dmax, bat := doc.network(), doc.downlinkMax(), doc.battery()

	f.mu.Lock()
	netChanged := !sameNetwork(f.net, net) || !sameFloat(f.downlinkMax, dmax)
	var levelChanged, chargingChanged bool
	if f.bat != nil && bat != nil {
		levelChanged = !sameFloat(f.bat.Level, bat.Level)
		chargingChanged = f.bat.Charging != bat.Charging
	}
	f.net, f.downlinkMax = net, dmax
	if bat != nil {
		// A battery, once acquired, stays acquired.
		f.bat = bat
	}
	f.mu.Unlock()

	if netChanged {
		f.changes.fire()
	}
	if levelChanged {
		f.level.fire()
	}
	if chargingChanged {
		f.charging.fire()
	}
}

func (f *File) read() (*fileDoc, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("source: read %q: %w", f.path, err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("source: parse %q: %w", f.path, err)
	}
	return &doc, nil
}

func (d *fileDoc) network() stance.NetworkReading {
	if d.Network == nil {
		return unknownNetwork()
	}
	return stance.NetworkReading{
		SaveData: d.Network.SaveData,
		RTT:      orNaN(d.Network.RTT),
		Downlink: orNaN(d.Network.Downlink),
	}
}

func (d *fileDoc) downlinkMax() float64 {
	if d.Network == nil {
		return math.NaN()
	}
	return orNaN(d.Network.DownlinkMax)
}

func (d *fileDoc) battery() *stance.BatteryReading {
	if d.Battery == nil {
		return nil
	}
	return &stance.BatteryReading{Level: orNaN(d.Battery.Level), Charging: d.Battery.Charging}
}
