package stance

import "github.com/obsidianstack/obs/pkg/types"

// Fuse recomputes every derived field of s from the whole record, never
// incrementally, so channels updated at different times cannot leave a
// stale combination behind. Missing channels degrade to moderate/neutral.
func Fuse(s *types.State, th Thresholds) {
	s.ConnectionCapability = Capability(s.RTTCategory, s.DownlinkBucket, th)
	s.ConservationPreference = Preference(s.DataSaver, s.BatteryLow)
	s.DeliveryMode = Delivery(s.ConnectionCapability, s.ConservationPreference)
	s.CanShowRichMedia = s.DeliveryMode == types.DeliveryRich
	s.ShouldAvoidRichMedia = s.DeliveryMode == types.DeliveryLite
}

// Evaluate runs normalization and fusion once. A nil reading stands for an
// unavailable channel and contributes no fields.
func Evaluate(net *NetworkReading, bat *BatteryReading, th Thresholds) types.State {
	var s types.State
	if net != nil {
		NormalizeNetwork(*net).ApplyTo(&s)
	}
	if bat != nil {
		NormalizeBattery(*bat, th).ApplyTo(&s)
	}
	Fuse(&s, th)
	return s
}
