package types

import "time"

// RTTCategory is the latency tier derived from a round-trip-time estimate.
// The zero value means the RTT was unknown.
type RTTCategory string

// Latency tiers, following the CrUX RTT tri-bins.
const (
	RTTLow    RTTCategory = "low"
	RTTMedium RTTCategory = "medium"
	RTTHigh   RTTCategory = "high"
)

// RTTCategories lists every latency tier in class-retraction order.
var RTTCategories = []RTTCategory{RTTLow, RTTMedium, RTTHigh}

// Capability is the network-only verdict built from latency and bandwidth.
type Capability string

const (
	CapabilityStrong   Capability = "strong"
	CapabilityModerate Capability = "moderate"
	CapabilityWeak     Capability = "weak"
)

// Capabilities lists every capability value.
var Capabilities = []Capability{CapabilityStrong, CapabilityModerate, CapabilityWeak}

// Preference is the user/device conservation preference.
type Preference string

const (
	PreferenceConserve Preference = "conserve"
	PreferenceNeutral  Preference = "neutral"
)

// Preferences lists every preference value.
var Preferences = []Preference{PreferenceConserve, PreferenceNeutral}

// DeliveryMode is the final recommendation for how much rich content to serve.
type DeliveryMode string

const (
	DeliveryRich     DeliveryMode = "rich"
	DeliveryCautious DeliveryMode = "cautious"
	DeliveryLite     DeliveryMode = "lite"
)

// DeliveryModes lists every delivery mode.
var DeliveryModes = []DeliveryMode{DeliveryRich, DeliveryCautious, DeliveryLite}

// State is the shared classification record. Pointer fields are nil while
// the signal behind them is unknown or its channel has not initialized.
//
// Only the agent engine writes a State; everybody else works on copies.
type State struct {
	// Network channel.
	RTTBucket      *int        `json:"rttBucket,omitempty"`
	RTTCategory    RTTCategory `json:"rttCategory,omitempty"`
	DownlinkBucket *int        `json:"downlinkBucket,omitempty"`
	DownlinkMax    *float64    `json:"downlinkMax,omitempty"`
	DataSaver      *bool       `json:"dataSaver,omitempty"`

	// Battery channel.
	BatteryLow      *bool `json:"batteryLow,omitempty"`
	BatteryCritical *bool `json:"batteryCritical,omitempty"`
	BatteryCharging *bool `json:"batteryCharging,omitempty"`

	// Fused stance. Always populated after the first pass.
	ConnectionCapability   Capability   `json:"connectionCapability"`
	ConservationPreference Preference   `json:"conservationPreference"`
	DeliveryMode           DeliveryMode `json:"deliveryMode"`
	CanShowRichMedia       bool         `json:"canShowRichMedia"`
	ShouldAvoidRichMedia   bool         `json:"shouldAvoidRichMedia"`

	// Protocol bookkeeping.
	NetworkInitialized bool      `json:"networkInitialized"`
	BatteryInitialized bool      `json:"batteryInitialized"`
	Revision           uint64    `json:"revision"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of s so callers can hold it without sharing
// pointers with the owner.
func (s State) Clone() State {
	out := s
	out.RTTBucket = cloneInt(s.RTTBucket)
	out.DownlinkBucket = cloneInt(s.DownlinkBucket)
	if s.DownlinkMax != nil {
		v := *s.DownlinkMax
		out.DownlinkMax = &v
	}
	out.DataSaver = cloneBool(s.DataSaver)
	out.BatteryLow = cloneBool(s.BatteryLow)
	out.BatteryCritical = cloneBool(s.BatteryCritical)
	out.BatteryCharging = cloneBool(s.BatteryCharging)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
