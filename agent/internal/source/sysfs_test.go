package source

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func fakeSupply(t *testing.T, root, name, capacity, status string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if capacity != "" {
		writeDoc(t, filepath.Join(dir, "capacity"), capacity+"\n")
	}
	if status != "" {
		writeDoc(t, filepath.Join(dir, "status"), status+"\n")
	}
	return dir
}

func TestSysfs_AcquireAutoDetects(t *testing.T) {
	root := t.TempDir()
	fakeSupply(t, root, "AC", "", "")
	fakeSupply(t, root, "BAT0", "18", "Discharging")

	s := NewSysfs("", 0)
	s.root = root

	b, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	r := b.Battery()
	if math.Abs(r.Level-0.18) > 1e-9 {
		t.Errorf("Level: got %v, want 0.18", r.Level)
	}
	if r.Charging {
		t.Error("Charging: got true for Discharging")
	}
}

func TestSysfs_NoBattery(t *testing.T) {
	s := NewSysfs("", 0)
	s.root = t.TempDir()
	if _, err := s.Acquire(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}

	s = NewSysfs(filepath.Join(t.TempDir(), "BAT9"), 0)
	if _, err := s.Acquire(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing dir: got %v, want ErrUnavailable", err)
	}
}

func TestSysfs_PollFiresOnChange(t *testing.T) {
	dir := fakeSupply(t, t.TempDir(), "BAT0", "50", "Discharging")
	s := NewSysfs(dir, 0)
	if _, err := s.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	var level, charging int
	s.SubscribeLevel(func() { level++ })
	s.SubscribeCharging(func() { charging++ })

	s.poll()
	if level != 0 || charging != 0 {
		t.Fatalf("unchanged supply fired events: level=%d charging=%d", level, charging)
	}

	writeDoc(t, filepath.Join(dir, "status"), "Charging\n")
	s.poll()
	if charging != 1 || level != 0 {
		t.Errorf("after status change: level=%d charging=%d, want 0/1", level, charging)
	}

	writeDoc(t, filepath.Join(dir, "capacity"), "garbage\n")
	s.poll()
	if level != 1 {
		t.Errorf("unreadable capacity should become unknown and fire: level=%d", level)
	}
	if !math.IsNaN(s.Battery().Level) {
		t.Errorf("Level: got %v, want NaN", s.Battery().Level)
	}
}
