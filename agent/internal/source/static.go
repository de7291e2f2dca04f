package source

import (
	"context"
	"math"

	"github.com/obsidianstack/obs/agent/internal/config"
	"github.com/obsidianstack/obs/pkg/stance"
)

// Static serves fixed readings. A nil Bat makes Acquire fail with
// ErrUnavailable. Static never emits change events.
type Static struct {
	Net stance.NetworkReading
	Bat *stance.BatteryReading
}

// Network returns the fixed network reading.
func (s *Static) Network() stance.NetworkReading { return s.Net }

// Battery returns the fixed battery reading.
func (s *Static) Battery() stance.BatteryReading {
	if s.Bat == nil {
		return stance.BatteryReading{Level: math.NaN()}
	}
	return *s.Bat
}

// Acquire resolves immediately.
func (s *Static) Acquire(context.Context) (Battery, error) {
	if s.Bat == nil {
		return nil, ErrUnavailable
	}
	return s, nil
}

func staticNetwork(v config.StaticValues) stance.NetworkReading {
	return stance.NetworkReading{
		SaveData: v.SaveData,
		RTT:      orNaN(v.RTT),
		Downlink: orNaN(v.Downlink),
	}
}

func staticBattery(v config.StaticValues) stance.BatteryReading {
	return stance.BatteryReading{Level: orNaN(v.Level), Charging: v.Charging}
}
