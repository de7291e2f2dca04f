package api

import "github.com/obsidianstack/obs/pkg/types"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status             string             `json:"status"`
	Revision           uint64             `json:"revision"`
	DeliveryMode       types.DeliveryMode `json:"delivery_mode"`
	NetworkInitialized bool               `json:"network_initialized"`
	BatteryInitialized bool               `json:"battery_initialized"`
	UpdatedAt          string             `json:"updated_at,omitempty"` // RFC3339
}

// ClassesResponse is the payload for GET /api/v1/classes.
type ClassesResponse struct {
	Classes []string `json:"classes"`
}

// NetworkSignal is the body of PUT /api/v1/signals/network.
// Omitted numeric fields mean "unknown".
type NetworkSignal struct {
	SaveData    bool     `json:"saveData"`
	RTT         *float64 `json:"rtt"`
	Downlink    *float64 `json:"downlink"`
	DownlinkMax *float64 `json:"downlinkMax"`
}

// BatterySignal is the body of PUT /api/v1/signals/battery.
type BatterySignal struct {
	Level    *float64 `json:"level"`
	Charging bool     `json:"charging"`
}

// AcceptedResponse acknowledges a pushed signal.
type AcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

type errorResponse struct {
	Error string `json:"error"`
}
