package stance

import (
	"github.com/obsidianstack/obs/pkg/classlist"
	"github.com/obsidianstack/obs/pkg/types"
)

// Class names asserted on the sink.
const (
	ClassDataSaver        = "has-data-saver"
	ClassBandwidthLow     = "has-bandwidth-low"
	ClassBandwidthHigh    = "has-bandwidth-high"
	ClassBatteryCritical  = "has-battery-critical"
	ClassBatteryLow       = "has-battery-low"
	ClassBatteryCharging  = "has-battery-charging"
	classLatencyPrefix    = "has-latency-"
	classCapabilityPrefix = "has-connection-capability-"
	classPreferencePrefix = "has-conservation-preference-"
	classDeliveryPrefix   = "has-delivery-mode-"
)

// Sink receives class assertions. classlist.ClassList and the goquery
// markup rewriter both satisfy it.
type Sink interface {
	Add(class string)
	Remove(class string)
	Toggle(class string, on bool)
}

// LatencyClass returns the class for an RTT tier.
func LatencyClass(c types.RTTCategory) string { return classLatencyPrefix + string(c) }

// CapabilityClass returns the class for a capability verdict.
func CapabilityClass(c types.Capability) string { return classCapabilityPrefix + string(c) }

// PreferenceClass returns the class for a conservation preference.
func PreferenceClass(p types.Preference) string { return classPreferencePrefix + string(p) }

// DeliveryClass returns the class for a delivery mode.
func DeliveryClass(m types.DeliveryMode) string { return classDeliveryPrefix + string(m) }

// ApplyNetworkClasses updates the per-signal network classes. An unknown
// RTT leaves no latency class behind.
func ApplyNetworkClasses(sink Sink, s types.State, th Thresholds) {
	sink.Toggle(ClassDataSaver, isTrue(s.DataSaver))

	for _, c := range types.RTTCategories {
		sink.Remove(LatencyClass(c))
	}
	if s.RTTCategory != "" {
		sink.Add(LatencyClass(s.RTTCategory))
	}

	sink.Toggle(ClassBandwidthLow, IsLowBandwidth(s.DownlinkBucket, th))
	sink.Toggle(ClassBandwidthHigh, IsHighBandwidth(s.DownlinkBucket, th))
}

// ApplyBatteryClasses asserts the most urgent battery class and the
// charging class.
func ApplyBatteryClasses(sink Sink, s types.State) {
	sink.Remove(ClassBatteryCritical)
	sink.Remove(ClassBatteryLow)
	switch {
	case isTrue(s.BatteryCritical):
		sink.Add(ClassBatteryCritical)
	case isTrue(s.BatteryLow):
		sink.Add(ClassBatteryLow)
	}
	sink.Toggle(ClassBatteryCharging, isTrue(s.BatteryCharging))
}

// ApplyStanceClasses retracts every class of the capability, preference
// and delivery axes, then asserts the current one for each.
func ApplyStanceClasses(sink Sink, s types.State) {
	for _, c := range types.Capabilities {
		sink.Remove(CapabilityClass(c))
	}
	sink.Add(CapabilityClass(s.ConnectionCapability))

	for _, p := range types.Preferences {
		sink.Remove(PreferenceClass(p))
	}
	sink.Add(PreferenceClass(s.ConservationPreference))

	for _, m := range types.DeliveryModes {
		sink.Remove(DeliveryClass(m))
	}
	sink.Add(DeliveryClass(s.DeliveryMode))
}

// ApplyClasses brings every axis on sink in line with s. Channels that have
// not initialized are left untouched.
func ApplyClasses(sink Sink, s types.State, th Thresholds) {
	if s.NetworkInitialized {
		ApplyNetworkClasses(sink, s, th)
	}
	if s.BatteryInitialized {
		ApplyBatteryClasses(sink, s)
	}
	ApplyStanceClasses(sink, s)
}

// Classes returns the sorted class set for s.
func Classes(s types.State, th Thresholds) []string {
	cl := classlist.New()
	ApplyClasses(cl, s, th)
	return cl.Names()
}
