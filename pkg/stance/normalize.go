package stance

import (
	"fmt"
	"math"

	"github.com/obsidianstack/obs/pkg/types"
)

// RTT bucketing and CrUX tier boundaries, in milliseconds.
const (
	RTTBucketMs    = 25
	RTTLowBelowMs  = 75.0
	RTTHighAboveMs = 275.0
)

// Thresholds holds the tunable bandwidth and battery boundaries.
//
// Bandwidth buckets strictly between LowBandwidthMbps and HighBandwidthMbps
// form the dead zone: neither low nor high.
type Thresholds struct {
	// HighBandwidthMbps is the smallest downlink bucket counted as high.
	HighBandwidthMbps int `yaml:"bandwidth_high_mbps" json:"bandwidth_high_mbps"`

	// LowBandwidthMbps is the largest downlink bucket counted as low.
	LowBandwidthMbps int `yaml:"bandwidth_low_mbps" json:"bandwidth_low_mbps"`

	// BatteryLow is the level (0–1) at or below which the battery is low.
	BatteryLow float64 `yaml:"battery_low" json:"battery_low"`

	// BatteryCritical is the level (0–1) at or below which the battery is critical.
	BatteryCritical float64 `yaml:"battery_critical" json:"battery_critical"`
}

// Default threshold values.
const (
	DefaultHighBandwidthMbps = 8
	DefaultLowBandwidthMbps  = 5
	DefaultBatteryLow        = 0.20
	DefaultBatteryCritical   = 0.05
)

// DefaultThresholds returns the stock 8/5 Mbps and 0.20/0.05 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighBandwidthMbps: DefaultHighBandwidthMbps,
		LowBandwidthMbps:  DefaultLowBandwidthMbps,
		BatteryLow:        DefaultBatteryLow,
		BatteryCritical:   DefaultBatteryCritical,
	}
}

// Validate checks that the thresholds describe non-overlapping ranges.
func (t Thresholds) Validate() error {
	if t.LowBandwidthMbps < 0 {
		return fmt.Errorf("bandwidth_low_mbps must not be negative")
	}
	if t.HighBandwidthMbps <= t.LowBandwidthMbps {
		return fmt.Errorf("bandwidth_high_mbps (%d) must be greater than bandwidth_low_mbps (%d)",
			t.HighBandwidthMbps, t.LowBandwidthMbps)
	}
	if t.BatteryLow <= 0 || t.BatteryLow > 1 {
		return fmt.Errorf("battery_low %v is out of range (0, 1]", t.BatteryLow)
	}
	if t.BatteryCritical <= 0 || t.BatteryCritical > t.BatteryLow {
		return fmt.Errorf("battery_critical %v must be in (0, battery_low]", t.BatteryCritical)
	}
	return nil
}

// NetworkReading is one raw sample from a network signal source.
// RTT and Downlink are NaN when the source does not report them.
type NetworkReading struct {
	SaveData bool
	RTT      float64 // milliseconds
	Downlink float64 // Mbps
}

// BatteryReading is one raw sample from a battery signal source.
// Level is NaN when unknown.
type BatteryReading struct {
	Level    float64 // 0–1
	Charging bool
}

// BucketRTT rounds rtt up to the next 25ms step: 108 becomes 125, the
// "100–125ms" band. Returns nil when rtt is not finite. Values past
// MaxBucket saturate at the largest whole step.
func BucketRTT(rtt float64) *int {
	if !finite(rtt) {
		return nil
	}
	b := ceilBucket(rtt/RTTBucketMs) * RTTBucketMs
	return &b
}

// CategoriseRTT maps rtt onto the low/medium/high tiers. 75 and 275 are
// both medium. Returns "" when rtt is not finite.
func CategoriseRTT(rtt float64) types.RTTCategory {
	switch {
	case !finite(rtt):
		return ""
	case rtt < RTTLowBelowMs:
		return types.RTTLow
	case rtt <= RTTHighAboveMs:
		return types.RTTMedium
	default:
		return types.RTTHigh
	}
}

// BucketDownlink rounds d up to whole Mbps. Only the integer range
// bounds it: anything past MaxBucket reads as MaxBucket.
// Returns nil when d is not finite.
func BucketDownlink(d float64) *int {
	if !finite(d) {
		return nil
	}
	b := ceilBucket(d)
	return &b
}

// BatteryLow reports level <= th.BatteryLow, or nil when level is unknown.
func BatteryLow(level float64, th Thresholds) *bool {
	if !finite(level) {
		return nil
	}
	v := level <= th.BatteryLow
	return &v
}

// BatteryCritical reports level <= th.BatteryCritical, or nil when level
// is unknown. Critical implies low whenever both are defined.
func BatteryCritical(level float64, th Thresholds) *bool {
	if !finite(level) {
		return nil
	}
	v := level <= th.BatteryCritical
	return &v
}

// NetworkFields is the normalized output of one network channel pass.
type NetworkFields struct {
	RTTBucket      *int
	RTTCategory    types.RTTCategory
	DownlinkBucket *int
	DataSaver      bool
}

// NormalizeNetwork buckets and categorises a raw network reading.
func NormalizeNetwork(r NetworkReading) NetworkFields {
	return NetworkFields{
		RTTBucket:      BucketRTT(r.RTT),
		RTTCategory:    CategoriseRTT(r.RTT),
		DownlinkBucket: BucketDownlink(r.Downlink),
		DataSaver:      r.SaveData,
	}
}

// ApplyTo replaces the network fields of s and marks the channel initialized.
// Unknown values clear the previous ones.
func (f NetworkFields) ApplyTo(s *types.State) {
	s.RTTBucket = f.RTTBucket
	s.RTTCategory = f.RTTCategory
	s.DownlinkBucket = f.DownlinkBucket
	saver := f.DataSaver
	s.DataSaver = &saver
	s.NetworkInitialized = true
}

// BatteryFields is the normalized output of one battery channel pass.
type BatteryFields struct {
	Low      *bool
	Critical *bool
	Charging bool
}

// NormalizeBattery applies the battery thresholds to a raw reading.
func NormalizeBattery(r BatteryReading, th Thresholds) BatteryFields {
	return BatteryFields{
		Low:      BatteryLow(r.Level, th),
		Critical: BatteryCritical(r.Level, th),
		Charging: r.Charging,
	}
}

// ApplyTo replaces the battery fields of s and marks the channel initialized.
func (f BatteryFields) ApplyTo(s *types.State) {
	s.BatteryLow = f.Low
	s.BatteryCritical = f.Critical
	charging := f.Charging
	s.BatteryCharging = &charging
	s.BatteryInitialized = true
}

// MaxBucket bounds every bucket; MaxBucket*RTTBucketMs fits an int32.
const MaxBucket = math.MaxInt32 / RTTBucketMs

// ceilBucket is math.Ceil saturated to ±MaxBucket.
func ceilBucket(v float64) int {
	c := math.Ceil(v)
	switch {
	case c >= MaxBucket:
		return MaxBucket
	case c <= -MaxBucket:
		return -MaxBucket
	}
	return int(c)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
