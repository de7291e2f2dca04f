package stance

import (
	"math"
	"testing"

	"github.com/obsidianstack/obs/pkg/types"
)

func TestBucketRTT_Properties(t *testing.T) {
	for rtt := 0.0; rtt <= 3000; rtt += 0.7 {
		b := BucketRTT(rtt)
		if b == nil {
			t.Fatalf("BucketRTT(%v) = nil, want bucket", rtt)
		}
		if *b%RTTBucketMs != 0 {
			t.Errorf("BucketRTT(%v) = %d, not a multiple of %d", rtt, *b, RTTBucketMs)
		}
		if float64(*b) < rtt {
			t.Errorf("BucketRTT(%v) = %d, below input", rtt, *b)
		}
		if float64(*b) >= rtt+RTTBucketMs {
			t.Errorf("BucketRTT(%v) = %d, more than one step above input", rtt, *b)
		}
	}
}

func TestBucketRTT_Examples(t *testing.T) {
	tests := []struct {
		rtt  float64
		want int
	}{
		{0, 0},
		{1, 25},
		{25, 25},
		{108, 125},
		{275, 275},
		{276, 300},
	}
	for _, tc := range tests {
		got := BucketRTT(tc.rtt)
		if got == nil || *got != tc.want {
			t.Errorf("BucketRTT(%v) = %v, want %d", tc.rtt, got, tc.want)
		}
	}
}

func TestNonFinite_IsUnknown(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := BucketRTT(v); got != nil {
			t.Errorf("BucketRTT(%v) = %d, want nil", v, *got)
		}
		if got := CategoriseRTT(v); got != "" {
			t.Errorf("CategoriseRTT(%v) = %q, want empty", v, got)
		}
		if got := BucketDownlink(v); got != nil {
			t.Errorf("BucketDownlink(%v) = %d, want nil", v, *got)
		}
		if got := BatteryLow(v, DefaultThresholds()); got != nil {
			t.Errorf("BatteryLow(%v) = %v, want nil", v, *got)
		}
		if got := BatteryCritical(v, DefaultThresholds()); got != nil {
			t.Errorf("BatteryCritical(%v) = %v, want nil", v, *got)
		}
	}
}

func TestCategoriseRTT_Boundaries(t *testing.T) {
	tests := []struct {
		rtt  float64
		want types.RTTCategory
	}{
		{0, types.RTTLow},
		{74.9, types.RTTLow},
		{75, types.RTTMedium},
		{150, types.RTTMedium},
		{275, types.RTTMedium},
		{275.1, types.RTTHigh},
		{276, types.RTTHigh},
		{2000, types.RTTHigh},
	}
	for _, tc := range tests {
		if got := CategoriseRTT(tc.rtt); got != tc.want {
			t.Errorf("CategoriseRTT(%v) = %q, want %q", tc.rtt, got, tc.want)
		}
	}
}

func TestBucketDownlink(t *testing.T) {
	tests := []struct {
		d    float64
		want int
	}{
		{4.2, 5},
		{5, 5},
		{0, 0},
		{0.1, 1},
		{37.5, 38}, // no upper clamp
	}
	for _, tc := range tests {
		got := BucketDownlink(tc.d)
		if got == nil || *got != tc.want {
			t.Errorf("BucketDownlink(%v) = %v, want %d", tc.d, got, tc.want)
		}
	}
}

func TestBuckets_SaturateOnHugeInput(t *testing.T) {
	for _, v := range []float64{1e10, 1e19, 1e300, math.MaxFloat64} {
		rtt := BucketRTT(v)
		if rtt == nil || *rtt != MaxBucket*RTTBucketMs {
			t.Errorf("BucketRTT(%v) = %v, want %d", v, rtt, MaxBucket*RTTBucketMs)
		}
		d := BucketDownlink(v)
		if d == nil || *d != MaxBucket {
			t.Errorf("BucketDownlink(%v) = %v, want %d", v, d, MaxBucket)
		}
	}

	th := DefaultThresholds()
	for _, v := range []float64{1e19, 1e300} {
		s := Evaluate(&NetworkReading{RTT: 40, Downlink: v}, nil, th)
		if s.ConnectionCapability != types.CapabilityStrong {
			t.Errorf("downlink %v: capability = %q, want strong", v, s.ConnectionCapability)
		}
		if s.DeliveryMode != types.DeliveryRich {
			t.Errorf("downlink %v: delivery = %q, want rich", v, s.DeliveryMode)
		}
	}

	s := Evaluate(&NetworkReading{RTT: 1e19, Downlink: 12}, nil, th)
	if s.RTTCategory != types.RTTHigh || s.ConnectionCapability != types.CapabilityWeak {
		t.Errorf("rtt 1e19: category %q capability %q, want high/weak", s.RTTCategory, s.ConnectionCapability)
	}
}

func TestBuckets_SaturateOnHugeNegativeInput(t *testing.T) {
	if b := BucketDownlink(-1e19); b == nil || *b != -MaxBucket {
		t.Errorf("BucketDownlink(-1e19) = %v, want %d", b, -MaxBucket)
	}
	if b := BucketRTT(-1e300); b == nil || *b != -MaxBucket*RTTBucketMs {
		t.Errorf("BucketRTT(-1e300) = %v, want %d", b, -MaxBucket*RTTBucketMs)
	}
}

func TestBatteryThresholds(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		level         float64
		low, critical bool
	}{
		{1.0, false, false},
		{0.21, false, false},
		{0.20, true, false},
		{0.15, true, false},
		{0.05, true, true},
		{0.0, true, true},
	}
	for _, tc := range tests {
		low := BatteryLow(tc.level, th)
		crit := BatteryCritical(tc.level, th)
		if low == nil || *low != tc.low {
			t.Errorf("BatteryLow(%v) = %v, want %v", tc.level, low, tc.low)
		}
		if crit == nil || *crit != tc.critical {
			t.Errorf("BatteryCritical(%v) = %v, want %v", tc.level, crit, tc.critical)
		}
		if *crit && !*low {
			t.Errorf("level %v: critical without low", tc.level)
		}
	}
}

func TestNetworkFields_ApplyTo_ClearsUnknown(t *testing.T) {
	var s types.State
	NormalizeNetwork(NetworkReading{RTT: 40, Downlink: 9}).ApplyTo(&s)
	if s.RTTBucket == nil || s.DownlinkBucket == nil {
		t.Fatal("expected buckets after first reading")
	}

	NormalizeNetwork(NetworkReading{RTT: math.NaN(), Downlink: math.NaN(), SaveData: true}).ApplyTo(&s)
	if s.RTTBucket != nil || s.RTTCategory != "" || s.DownlinkBucket != nil {
		t.Errorf("unknown reading should clear fields, got %+v", s)
	}
	if s.DataSaver == nil || !*s.DataSaver {
		t.Error("dataSaver should mirror the reading")
	}
	if !s.NetworkInitialized {
		t.Error("network channel should be initialized")
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	bad := []Thresholds{
		{HighBandwidthMbps: 5, LowBandwidthMbps: 5, BatteryLow: 0.2, BatteryCritical: 0.05},
		{HighBandwidthMbps: 8, LowBandwidthMbps: -1, BatteryLow: 0.2, BatteryCritical: 0.05},
		{HighBandwidthMbps: 8, LowBandwidthMbps: 5, BatteryLow: 1.5, BatteryCritical: 0.05},
		{HighBandwidthMbps: 8, LowBandwidthMbps: 5, BatteryLow: 0.2, BatteryCritical: 0.3},
		{HighBandwidthMbps: 8, LowBandwidthMbps: 5, BatteryLow: 0.2, BatteryCritical: 0},
	}
	for i, th := range bad {
		if err := th.Validate(); err == nil {
			t.Errorf("case %d: expected error for %+v", i, th)
		}
	}
}

func nan() float64 { return math.NaN() }
