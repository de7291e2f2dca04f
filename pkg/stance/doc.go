// Package stance turns raw network and battery signals into a delivery
// stance. It is the pure core shared by the agent engine and the Client
// Hints server:
//
//   - normalize.go: BucketRTT, CategoriseRTT, BucketDownlink and the battery
//     thresholds. Every function is total: NaN and ±Inf mean "unknown" and
//     yield nil / the zero category instead of an error.
//   - classify.go: Capability (strong|moderate|weak), Preference
//     (conserve|neutral) and Delivery (rich|cautious|lite).
//   - fuse.go: Fuse recomputes the derived fields of a types.State from the
//     whole record; Evaluate runs the full pipeline once for a pair of
//     optional readings.
//   - classes.go: the class vocabulary and the retract-then-assert helpers
//     that keep exactly one class per axis on a Sink.
//
// RTT tiers follow the CrUX tri-bins (low <75ms, medium 75–275ms, high
// >275ms) and are fixed. Bandwidth and battery thresholds are tunable
// through Thresholds; DefaultThresholds returns 8/5 Mbps and 0.20/0.05.
package stance
