package api

import (
	"fmt"

	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

// DiagnosticHint is one human-readable reason behind the current stance.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics explains which signals pushed the stance where it is.
// Critical hints come first, then warnings, then info.
func computeDiagnostics(s types.State, th stance.Thresholds) []DiagnosticHint {
	var critical, warning, info []DiagnosticHint

	if !s.NetworkInitialized {
		info = append(info, DiagnosticHint{
			Key:   "network_unavailable",
			Level: "info",
			Title: "No network signal",
			Detail: "The network channel has not reported yet, so latency and bandwidth " +
				"count as unknown and the connection is treated as moderate.",
		})
	}
	if !s.BatteryInitialized {
		info = append(info, DiagnosticHint{
			Key:   "battery_unavailable",
			Level: "info",
			Title: "No battery signal",
			Detail: "The battery channel is unavailable or was never acquired. " +
				"Battery state does not influence the conservation preference.",
		})
	}

	if isTrue(s.DataSaver) {
		warning = append(warning, DiagnosticHint{
			Key:    "data_saver",
			Level:  "warning",
			Title:  "Data saver on",
			Detail: "The user asked to reduce data usage. Rich media is avoided regardless of connection quality.",
		})
	}

	switch s.RTTCategory {
	case types.RTTHigh:
		warning = append(warning, DiagnosticHint{
			Key:   "latency_high",
			Level: "warning",
			Title: "High latency",
			Detail: fmt.Sprintf("Round-trip time is above %.0f ms, which marks the connection as weak.",
				stance.RTTHighAboveMs),
			Value: intValue(s.RTTBucket),
		})
	case types.RTTMedium:
		info = append(info, DiagnosticHint{
			Key:    "latency_medium",
			Level:  "info",
			Title:  "Moderate latency",
			Detail: "Round-trip time is neither low nor high. A strong connection needs low latency.",
			Value:  intValue(s.RTTBucket),
		})
	}

	if stance.IsLowBandwidth(s.DownlinkBucket, th) {
		warning = append(warning, DiagnosticHint{
			Key:   "bandwidth_low",
			Level: "warning",
			Title: "Low bandwidth",
			Detail: fmt.Sprintf("Estimated downlink is at or below %d Mbps, which marks the connection as weak.",
				th.LowBandwidthMbps),
			Value: intValue(s.DownlinkBucket),
		})
	}

	if isTrue(s.BatteryCritical) {
		critical = append(critical, DiagnosticHint{
			Key:   "battery_critical",
			Level: "critical",
			Title: "Battery critical",
			Detail: fmt.Sprintf("Battery level is at or below %.0f%%. The device should conserve energy.",
				th.BatteryCritical*100),
		})
	} else if isTrue(s.BatteryLow) {
		warning = append(warning, DiagnosticHint{
			Key:   "battery_low",
			Level: "warning",
			Title: "Battery low",
			Detail: fmt.Sprintf("Battery level is at or below %.0f%%, so the stance prefers conservation.",
				th.BatteryLow*100),
		})
	}

	out := make([]DiagnosticHint, 0, len(critical)+len(warning)+len(info))
	out = append(out, critical...)
	out = append(out, warning...)
	return append(out, info...)
}

func isTrue(p *bool) bool { return p != nil && *p }

func intValue(p *int) *float64 {
	if p == nil {
		return nil
	}
	v := float64(*p)
	return &v
}
