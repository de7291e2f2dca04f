package stance

import "github.com/obsidianstack/obs/pkg/types"

// IsHighBandwidth reports whether a downlink bucket is at or above the
// high threshold. A nil bucket is never high.
func IsHighBandwidth(bucket *int, th Thresholds) bool {
	return bucket != nil && *bucket >= th.HighBandwidthMbps
}

// IsLowBandwidth reports whether a downlink bucket is at or below the low
// threshold. A nil bucket is never low.
func IsLowBandwidth(bucket *int, th Thresholds) bool {
	return bucket != nil && *bucket <= th.LowBandwidthMbps
}

// Capability derives the network-only verdict.
//
//	strong   — low RTT and high bandwidth
//	weak     — high RTT or low bandwidth
//	moderate — everything else, including unknown inputs and the dead zone
func Capability(rtt types.RTTCategory, downlinkBucket *int, th Thresholds) types.Capability {
	switch {
	case rtt == types.RTTLow && IsHighBandwidth(downlinkBucket, th):
		return types.CapabilityStrong
	case rtt == types.RTTHigh || IsLowBandwidth(downlinkBucket, th):
		return types.CapabilityWeak
	default:
		return types.CapabilityModerate
	}
}

// Preference is conserve when Save-Data is on or the battery is low.
// Unknown values count as false.
func Preference(dataSaver, batteryLow *bool) types.Preference {
	if isTrue(dataSaver) || isTrue(batteryLow) {
		return types.PreferenceConserve
	}
	return types.PreferenceNeutral
}

// Delivery fuses capability and preference; the first matching rule wins.
func Delivery(c types.Capability, p types.Preference) types.DeliveryMode {
	switch {
	case p == types.PreferenceNeutral && c == types.CapabilityStrong:
		return types.DeliveryRich
	case p == types.PreferenceConserve || c == types.CapabilityWeak:
		return types.DeliveryLite
	default:
		return types.DeliveryCautious
	}
}

func isTrue(p *bool) bool {
	return p != nil && *p
}
