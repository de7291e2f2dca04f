package source

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/obsidianstack/obs/pkg/stance"
)

// powerSupplyRoot is where Linux exposes the power_supply class.
const powerSupplyRoot = "/sys/class/power_supply"

// Sysfs reads a Linux battery from its power_supply directory:
// capacity (0–100) and status (Charging, Discharging, Full, Not charging).
// sysfs does not emit inotify events, so Run polls.
type Sysfs struct {
	dir      string
	root     string
	interval time.Duration

	mu       sync.RWMutex
	reading  stance.BatteryReading
	level    broadcaster
	charging broadcaster
}

// NewSysfs returns a battery for dir. An empty dir picks the first BAT*
// supply at acquisition time.
func NewSysfs(dir string, interval time.Duration) *Sysfs {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Sysfs{dir: dir, root: powerSupplyRoot, interval: interval}
}

// Acquire resolves the supply directory and takes the first reading.
// No battery on the machine makes the channel unavailable.
func (s *Sysfs) Acquire(context.Context) (Battery, error) {
	s.mu.RLock()
	dir := s.dir
	s.mu.RUnlock()

	if dir == "" {
		matches, _ := filepath.Glob(filepath.Join(s.root, "BAT*"))
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: no battery under %s", ErrUnavailable, s.root)
		}
		dir = matches[0]
	}
	r, err := readSupply(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.mu.Lock()
	s.dir = dir
	s.reading = r
	s.mu.Unlock()
	return s, nil
}

// Battery returns the last reading.
func (s *Sysfs) Battery() stance.BatteryReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading
}

// SubscribeLevel registers fn for level changes.
func (s *Sysfs) SubscribeLevel(fn func()) func() { return s.level.subscribe(fn) }

// SubscribeCharging registers fn for charging changes.
func (s *Sysfs) SubscribeCharging(fn func()) func() { return s.charging.subscribe(fn) }

// Run polls the supply every interval. It does nothing until Acquire has
// resolved a directory.
func (s *Sysfs) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.poll()
		}
	}
}

func (s *Sysfs) poll() {
	s.mu.RLock()
	dir := s.dir
	s.mu.RUnlock()
	if dir == "" {
		return
	}

	r, err := readSupply(dir)
	if err != nil {
		slog.Debug("source: sysfs read failed", "dir", dir, "err", err)
		return
	}

	s.mu.Lock()
	prev := s.reading
	s.reading = r
	s.mu.Unlock()

	if !sameFloat(prev.Level, r.Level) {
		s.level.fire()
	}
	if prev.Charging != r.Charging {
		s.charging.fire()
	}
}

// readSupply reads capacity and status from a power_supply directory.
// A missing or garbled capacity is an unknown level, not an error; a missing
// directory is.
func readSupply(dir string) (stance.BatteryReading, error) {
	if _, err := os.Stat(dir); err != nil {
		return stance.BatteryReading{}, err
	}

	level := math.NaN()
	if raw, err := os.ReadFile(filepath.Join(dir, "capacity")); err == nil {
		if pct, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64); err == nil {
			level = pct / 100
		}
	}

	var charging bool
	if raw, err := os.ReadFile(filepath.Join(dir, "status")); err == nil {
		switch strings.TrimSpace(string(raw)) {
		case "Charging", "Full":
			charging = true
		}
	}

	return stance.BatteryReading{Level: level, Charging: charging}, nil
}
