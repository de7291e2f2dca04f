package stance

import (
	"strings"
	"testing"

	"github.com/obsidianstack/obs/pkg/classlist"
	"github.com/obsidianstack/obs/pkg/types"
)

// axisCount returns how many classes in names start with prefix.
func axisCount(names []string, prefix string) int {
	var n int
	for _, c := range names {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func TestClasses_OnePerAxis(t *testing.T) {
	th := DefaultThresholds()
	s := Evaluate(&NetworkReading{RTT: 40, Downlink: 9}, &BatteryReading{Level: 0.9, Charging: true}, th)
	names := Classes(s, th)

	for _, prefix := range []string{
		"has-connection-capability-",
		"has-conservation-preference-",
		"has-delivery-mode-",
		"has-latency-",
	} {
		if n := axisCount(names, prefix); n != 1 {
			t.Errorf("%s*: got %d classes, want 1 (%v)", prefix, n, names)
		}
	}

	cl := classlist.New(names...)
	for _, want := range []string{
		"has-connection-capability-strong",
		"has-conservation-preference-neutral",
		"has-delivery-mode-rich",
		"has-latency-low",
		ClassBandwidthHigh,
		ClassBatteryCharging,
	} {
		if !cl.Contains(want) {
			t.Errorf("missing class %q in %v", want, names)
		}
	}
	if cl.Contains(ClassDataSaver) || cl.Contains(ClassBandwidthLow) || cl.Contains(ClassBatteryLow) {
		t.Errorf("unexpected classes in %v", names)
	}
}

func TestApplyClasses_NoLeakBetweenPasses(t *testing.T) {
	th := DefaultThresholds()
	cl := classlist.New("js")

	rich := Evaluate(&NetworkReading{RTT: 40, Downlink: 9}, &BatteryReading{Level: 0.9}, th)
	ApplyClasses(cl, rich, th)

	lite := Evaluate(&NetworkReading{RTT: 300, Downlink: 2}, &BatteryReading{Level: 0.04}, th)
	ApplyClasses(cl, lite, th)
	ApplyClasses(cl, lite, th) // repeat must not duplicate

	for _, stale := range []string{
		"has-connection-capability-strong",
		"has-delivery-mode-rich",
		"has-latency-low",
		ClassBandwidthHigh,
	} {
		if cl.Contains(stale) {
			t.Errorf("stale class %q leaked: %s", stale, cl)
		}
	}
	for _, want := range []string{
		"js",
		"has-connection-capability-weak",
		"has-delivery-mode-lite",
		"has-latency-high",
		ClassBandwidthLow,
		ClassBatteryCritical,
	} {
		if !cl.Contains(want) {
			t.Errorf("missing class %q: %s", want, cl)
		}
	}
	// Only the most urgent battery class is asserted.
	if cl.Contains(ClassBatteryLow) {
		t.Errorf("battery-low should yield to battery-critical: %s", cl)
	}
}

func TestApplyClasses_UnknownRTTRetractsLatency(t *testing.T) {
	th := DefaultThresholds()
	cl := classlist.New()

	var s types.State
	NormalizeNetwork(NetworkReading{RTT: 40, Downlink: 9}).ApplyTo(&s)
	Fuse(&s, th)
	ApplyClasses(cl, s, th)

	NormalizeNetwork(NetworkReading{RTT: nan(), Downlink: nan()}).ApplyTo(&s)
	Fuse(&s, th)
	ApplyClasses(cl, s, th)

	if n := axisCount(cl.Names(), "has-latency-"); n != 0 {
		t.Errorf("latency classes after unknown RTT: got %d, want 0 (%s)", n, cl)
	}
	if !cl.Contains("has-connection-capability-moderate") {
		t.Errorf("capability should fall back to moderate: %s", cl)
	}
}
